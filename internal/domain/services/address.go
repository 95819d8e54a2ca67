package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/athebyme/mms-connector/internal/domain/models"
	"github.com/athebyme/mms-connector/pkg/interfaces"
)

var nonWordRe = regexp.MustCompile(`\W+`)

// maxSyntheticEmailLength — предел длины локальной части синтезированного email
const maxSyntheticEmailLength = 103

// addressByLanguage возвращает первый адрес заказа, чей language_code
// начинается с указанного языка ("en" матчит "en-US"). Пустой язык
// означает первый адрес, у которого язык вообще задан.
func addressByLanguage(orderData *models.OrderData, language string) models.AddressData {
	var want string
	if language != "" {
		want = strings.ToLower(strings.TrimRight(language, " -")) + "-"
	}

	for _, address := range orderData.Addresses {
		if address.LanguageCode == "" {
			continue
		}
		if want == "" || strings.HasPrefix(strings.ToLower(address.LanguageCode), want) {
			return address
		}
	}
	return models.AddressData{}
}

// customerName возвращает имя покупателя: из английского адреса,
// иначе из китайского, иначе из первого. Заказ без имени — ошибка,
// без имени нельзя ни создать покупателя, ни синтезировать email.
func customerName(orderData *models.OrderData) (string, error) {
	english := addressByLanguage(orderData, "en")
	chinese := addressByLanguage(orderData, "zh")
	first := addressByLanguage(orderData, "")

	switch {
	case english.Name != "":
		return english.Name, nil
	case chinese.Name != "":
		return chinese.Name, nil
	case first.Name != "":
		return first.Name, nil
	}

	return "", models.NewSyncError(models.ReconciliationError,
		fmt.Sprintf("no address name found on order %d", orderData.OrderID))
}

// nameParts разбивает полное имя на фамилию, имя и отчество.
// Последнее слово считается фамилией, первое из оставшихся — именем.
func nameParts(name string) map[string]interface{} {
	parts := strings.Fields(name)
	data := map[string]interface{}{
		"first_name":  nil,
		"last_name":   nil,
		"middle_name": nil,
	}
	if len(parts) == 0 {
		return data
	}

	data["last_name"] = parts[len(parts)-1]
	parts = parts[:len(parts)-1]
	if len(parts) > 0 {
		data["first_name"] = parts[0]
		parts = parts[1:]
	}
	if len(parts) > 0 {
		data["middle_name"] = strings.Join(parts, " ")
	}
	return data
}

// emailFieldBudgets задает порядок и бюджет полей адреса для синтеза
// email. Бюджет первого непустого поля определяет, сколько полей всего
// войдет в локальную часть: более специфичные поля требуют меньше
// дополнений для уникальности.
var emailFieldBudgets = []struct {
	field  func(models.AddressData) string
	budget int
}{
	{func(a models.AddressData) string { return a.AddressLine1 }, 1},
	{func(a models.AddressData) string { return a.ContactPhone1 }, 2},
	{func(a models.AddressData) string { return a.PostalCode }, 2},
	{func(a models.AddressData) string { return a.City }, 3},
	{func(a models.AddressData) string { return a.CompanyName }, 3},
	{func(a models.AddressData) string { return a.Province }, 4},
}

// customerEmail возвращает email покупателя из адресов заказа либо
// синтезирует детерминированный псевдо-email из имени и полей адреса.
// Синтез детерминирован: повторная синхронизация того же заказа дает
// тот же адрес и попадает в того же покупателя.
func customerEmail(orderData *models.OrderData, domain string) (string, error) {
	english := addressByLanguage(orderData, "en")
	chinese := addressByLanguage(orderData, "zh")
	first := addressByLanguage(orderData, "")

	var email string
	switch {
	case english.ContactEmail1 != "":
		email = english.ContactEmail1
	case chinese.ContactEmail1 != "":
		email = chinese.ContactEmail1
	case first.ContactEmail1 != "":
		email = first.ContactEmail1
	}
	if len(email) >= 6 {
		return email, nil
	}

	name, err := customerName(orderData)
	if err != nil {
		return "", err
	}

	local := "tm_" + name
	fieldsAdded, maxFields := 0, 0
	for _, address := range []models.AddressData{english, first, chinese} {
		for _, entry := range emailFieldBudgets {
			part := nonWordRe.ReplaceAllString(entry.field(address), "")
			if part == "" {
				continue
			}
			local += part
			if fieldsAdded == 0 {
				maxFields = entry.budget
			}
			fieldsAdded++
			if fieldsAdded >= maxFields {
				break
			}
		}
		if fieldsAdded > 0 && fieldsAdded >= maxFields {
			break
		}
	}

	local = strings.ToLower(nonWordRe.ReplaceAllString(local, ""))
	if len(local) > maxSyntheticEmailLength {
		local = local[:maxSyntheticEmailLength]
	}
	return local + "@" + domain, nil
}

// createAddresses создает адресные сущности заказа и возвращает их
// идентификаторы под ключами billing_address и shipping_address.
// Платежный адрес — английский, адрес доставки — китайский; при
// отсутствии одного из них оба указывают на одну сущность.
func (r *OrderReconciler) createAddresses(ctx context.Context, orderData *models.OrderData) (map[string]interface{}, error) {
	refs := make(map[string]interface{})
	if len(orderData.Addresses) == 0 {
		return refs, nil
	}

	billing := addressByLanguage(orderData, "en")
	shipping := addressByLanguage(orderData, "zh")

	switch {
	case billing.IsZero() && shipping.IsZero():
		billing = addressByLanguage(orderData, "")
		shipping = billing
	case billing.IsZero():
		billing = shipping
	case shipping.IsZero():
		shipping = billing
	}
	if billing.IsZero() {
		return refs, nil
	}

	if billing == shipping {
		addressID, err := r.createAddressEntity(ctx, billing, orderData, "")
		if err != nil {
			return nil, err
		}
		if addressID != 0 {
			refs["billing_address"] = addressID
			refs["shipping_address"] = addressID
		}
		return refs, nil
	}

	billingID, err := r.createAddressEntity(ctx, billing, orderData, "billing")
	if err != nil {
		return nil, err
	}
	if billingID != 0 {
		refs["billing_address"] = billingID
	}

	shippingID, err := r.createAddressEntity(ctx, shipping, orderData, "shipping")
	if err != nil {
		return nil, err
	}
	if shippingID != 0 {
		refs["shipping_address"] = shippingID
	}

	return refs, nil
}

// createAddressEntity находит или создает одну адресную сущность.
// Адреса глобальны и идемпотентны по уникальному ключу заказа и типа.
func (r *OrderReconciler) createAddressEntity(ctx context.Context, addressData models.AddressData,
	orderData *models.OrderData, addressType string) (int64, error) {

	if addressData.IsZero() {
		return 0, nil
	}

	uniqueID := "order-" + orderData.MarketplaceOrderReference
	if addressType != "" {
		uniqueID += "-" + addressType
	}

	existing, err := r.store.LoadByUniqueID(ctx, interfaces.EntityTypeAddress, interfaces.GlobalStoreID, uniqueID)
	if err != nil {
		return 0, fmt.Errorf("failed to load address %s: %w", uniqueID, err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	// Длинная часть улицы сворачивается во вторую строку
	var streetLines []string
	if len(addressData.AddressLine1) > len(addressData.AddressLine3) {
		streetLines = []string{
			strings.TrimSpace(addressData.AddressLine1),
			strings.TrimSpace(addressData.AddressLine2 + " " + addressData.AddressLine3),
		}
	} else {
		streetLines = []string{
			strings.TrimSpace(addressData.AddressLine1 + " " + addressData.AddressLine2),
			strings.TrimSpace(addressData.AddressLine3),
		}
	}
	street := strings.TrimSpace(strings.Join(streetLines, "\n"))

	data := nameParts(addressData.Name)
	data["company"] = valueOrNil(addressData.CompanyName)
	data["street"] = valueOrNil(street)
	data["region"] = valueOrNil(addressData.Province)
	data["city"] = valueOrNil(addressData.City)
	data["postcode"] = valueOrNil(addressData.PostalCode)
	data["country_code"] = valueOrNil(addressData.CountryCode)
	data["telephone"] = valueOrNil(addressData.ContactPhone1)

	entity, err := r.store.Create(ctx, &interfaces.Entity{
		Type:     interfaces.EntityTypeAddress,
		StoreID:  interfaces.GlobalStoreID,
		UniqueID: uniqueID,
		Data:     data,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create address %s: %w", uniqueID, err)
	}
	return entity.ID, nil
}

func valueOrNil(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
