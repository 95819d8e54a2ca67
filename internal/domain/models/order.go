package models

// Коды финансовых полей строки заказа. Для каждого кода считается
// суммарный итог заказа в поле "{code}_total".
const (
	TotalCodeDiscount = "discount"
	TotalCodePayment  = "payment"
	TotalCodePrice    = "price"
	TotalCodeShipping = "shipping"
	TotalCodeTax      = "tax"
	TotalCodeWeight   = "weight"
)

// TotalCode описывает один финансовый код и способ его накопления
type TotalCode struct {
	Code string
	// PerItem: значение строки умножается на количество перед суммированием
	PerItem bool
}

// TotalCodes — фиксированный набор рассчитываемых итогов.
// Гранд-итог берется из payment: в отличие от price он учитывает промо-скидки.
var TotalCodes = []TotalCode{
	{Code: TotalCodeDiscount, PerItem: false},
	{Code: TotalCodePayment, PerItem: false},
	{Code: TotalCodePrice, PerItem: true},
	{Code: TotalCodeShipping, PerItem: false},
	{Code: TotalCodeTax, PerItem: false},
	{Code: TotalCodeWeight, PerItem: false},
}

// GrandTotalBase — код, из которого берется grand_total заказа
const GrandTotalBase = TotalCodePayment

// PaymentMethodCode — код метода оплаты маркетплейса
const PaymentMethodCode = "tmalipay"

// OrderUniquePrefix — префикс уникального идентификатора заказа в хабе
const OrderUniquePrefix = "M"

// FallbackSKU подставляется, когда строка заказа не содержит валидного SKU
const FallbackSKU = "<undefined on mms>"

// OrderData — заказ в том виде, в котором его отдает API маркетплейса
type OrderData struct {
	OrderID                   int64           `json:"order_id"`
	MarketplaceID             string          `json:"marketplace_id"`
	MarketplaceOrderReference string          `json:"marketplace_order_reference"`
	Status                    string          `json:"status"`
	CreatedAt                 string          `json:"created_at"`
	ExchangeRateApplied       *float64        `json:"marketplace_to_local_exchange_rate_applied,omitempty"`
	ExchangeRateEstimated     *float64        `json:"marketplace_to_local_exchange_rate_estimated,omitempty"`
	Addresses                 []AddressData   `json:"addresses,omitempty"`
	OrderItems                []OrderItemData `json:"order_items,omitempty"`
}

// ExchangeRate возвращает примененный курс, иначе оценочный, иначе 0
func (o *OrderData) ExchangeRate() float64 {
	if o.ExchangeRateApplied != nil {
		return *o.ExchangeRateApplied
	}
	if o.ExchangeRateEstimated != nil {
		return *o.ExchangeRateEstimated
	}
	return 0
}

// UniqueID возвращает детерминированный уникальный идентификатор заказа
func (o *OrderData) UniqueID() string {
	return OrderUniquePrefix + o.MarketplaceOrderReference
}

// AddressData — адрес из заказа маркетплейса, помеченный языком
type AddressData struct {
	LanguageCode  string `json:"language_code,omitempty"`
	Name          string `json:"name,omitempty"`
	AddressLine1  string `json:"address_line_1,omitempty"`
	AddressLine2  string `json:"address_line_2,omitempty"`
	AddressLine3  string `json:"address_line_3,omitempty"`
	ContactPhone1 string `json:"contact_phone_1,omitempty"`
	ContactEmail1 string `json:"contact_email_1,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	City          string `json:"city,omitempty"`
	CompanyName   string `json:"company_name,omitempty"`
	Province      string `json:"province,omitempty"`
	CountryCode   string `json:"country_code,omitempty"`
}

// IsZero сообщает, пустой ли адрес
func (a AddressData) IsZero() bool {
	return a == AddressData{}
}

// OrderItemData — строка заказа маркетплейса
type OrderItemData struct {
	OrderItemID  int64              `json:"order_item_id"`
	Name         string             `json:"name,omitempty"`
	Quantity     int64              `json:"quantity"`
	ShippingType string             `json:"shipping_type,omitempty"`
	Item         *ItemData          `json:"item,omitempty"`
	Financials   map[string]float64 `json:"local_order_item_financials,omitempty"`
}

// Financial возвращает значение финансового поля и признак его наличия
func (i *OrderItemData) Financial(code string) (float64, bool) {
	if i.Financials == nil {
		return 0, false
	}
	value, ok := i.Financials[code]
	return value, ok
}

// ItemData — товар строки заказа
type ItemData struct {
	ItemID      *int64  `json:"item_id,omitempty"`
	VariationID *int64  `json:"variation_id,omitempty"`
	SKU         string  `json:"sku,omitempty"`
	MasterSKU   string  `json:"master_sku,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
}

// OrderIDsSince — результат запроса идентификаторов заказов с курсора
type OrderIDsSince struct {
	NewSinceID int64   `json:"new_since_id"`
	OrderIDs   []int64 `json:"order_ids"`
}
