package models

// Статусы заказа на маркетплейсе
const (
	StatusPaid             = "paid"
	StatusPartiallyShipped = "partially_shipped"
	StatusShipped          = "shipped"
	StatusCompleted        = "completed"
	StatusClosed           = "closed"
	StatusWaitForDelivery  = "wait_seller_delivery"
	StatusWaitForGoods     = "wait_seller_send_goods"
)

// StatusSets — наборы статусов, управляющие отбором и побочными
// эффектами синхронизации. Передаются в реконсилер как конфигурация,
// чтобы их можно было тестировать изолированно.
type StatusSets struct {
	// Shippable — заказ еще подлежит отгрузке
	Shippable []string
	// Excluded — заказ никогда не импортируется
	Excluded []string
	// FirstRunExcluded — дополнительно исключаются на первом прогоне,
	// чтобы не тащить исторические заказы при начальном курсоре
	FirstRunExcluded []string
}

// DefaultStatusSets возвращает наборы статусов по умолчанию
func DefaultStatusSets() StatusSets {
	return StatusSets{
		Shippable: []string{
			StatusPaid, StatusPartiallyShipped, StatusWaitForDelivery, StatusWaitForGoods,
		},
		Excluded: []string{
			StatusShipped, StatusCompleted, StatusClosed,
		},
		FirstRunExcluded: []string{
			StatusPartiallyShipped, StatusShipped, StatusCompleted, StatusClosed,
		},
	}
}

func contains(set []string, status string) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// IsShippable сообщает, подлежит ли заказ в этом статусе отгрузке
func (s StatusSets) IsShippable(status string) bool {
	return contains(s.Shippable, status)
}

// IsExcluded сообщает, исключен ли статус из импорта безусловно
func (s StatusSets) IsExcluded(status string) bool {
	return contains(s.Excluded, status)
}

// IsFirstRunExcluded сообщает, исключен ли статус на первом прогоне
func (s StatusSets) IsFirstRunExcluded(status string) bool {
	return contains(s.FirstRunExcluded, status)
}

// IsClosed сообщает, закрыт ли заказ
func IsClosed(status string) bool {
	return status == StatusClosed
}
