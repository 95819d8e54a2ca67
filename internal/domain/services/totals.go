package services

import "github.com/athebyme/mms-connector/internal/domain/models"

// shippingMap переводит способ доставки маркетплейса в метод доставки хаба
var shippingMap = map[string]string{
	"direct_mail": "int_ems_china_3-8_tracked",
}

// defaultShippingMethod подставляется, когда ни одна строка заказа
// не несет известного способа доставки
const defaultShippingMethod = "int_ems_china_3-8_tracked"

// orderTotals — агрегированные финансовые итоги заказа
type orderTotals struct {
	// byCode содержит итоги только по кодам, встретившимся в строках
	byCode             map[string]float64
	grandTotal         float64
	baseToCurrencyRate float64
	shippingMethod     string
}

// computeOrderTotals суммирует финансовые поля строк заказа.
// Курс конвертации усредняется с весом по стоимости строки, чтобы
// заказы со строками в разных курсах получали справедливое среднее.
func computeOrderTotals(orderData *models.OrderData) orderTotals {
	totals := orderTotals{byCode: make(map[string]float64, len(models.TotalCodes))}

	rate := orderData.ExchangeRate()
	var rateWeighted, rateBase float64

	for _, item := range orderData.OrderItems {
		if item.Quantity == 0 || item.Financials == nil {
			continue
		}

		row := make(map[string]float64, len(models.TotalCodes))
		for _, totalCode := range models.TotalCodes {
			value, ok := item.Financial(totalCode.Code)
			if !ok {
				continue
			}
			if totalCode.PerItem {
				value *= float64(item.Quantity)
			}
			row[totalCode.Code] = value
			totals.byCode[totalCode.Code] += value
		}

		if rate > 0 {
			rateWeighted += rate * row[models.TotalCodePrice]
			rateBase += row[models.TotalCodePrice]
		}

		if totals.shippingMethod == "" {
			if method, ok := shippingMap[item.ShippingType]; ok {
				totals.shippingMethod = method
			}
		}
	}

	if rateBase > 0 {
		totals.baseToCurrencyRate = rateWeighted / rateBase
	}
	totals.grandTotal = totals.byCode[models.GrandTotalBase]

	return totals
}
