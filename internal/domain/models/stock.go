package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	digitsRe     = regexp.MustCompile(`^[0-9]+$`)
)

// BundleSpec — множители составных SKU продукта.
// Каждый множитель соответствует одному SKU на маркетплейсе:
// базовому при m == 1, либо "baseSku<SEP><m>".
type BundleSpec struct {
	Multipliers []int64
}

// ParseBundleSpec разбирает атрибут продукта со списком множителей
// через запятую. Пустой атрибут означает, что продукт не настроен для
// маркетплейса (ok == false) — это пропуск, не ошибка. Множитель 1
// присутствует всегда, даже если не указан явно.
func ParseBundleSpec(attribute string) (BundleSpec, bool) {
	sanitized := whitespaceRe.ReplaceAllString(attribute, "")
	if sanitized == "" {
		return BundleSpec{}, false
	}

	seen := map[int64]bool{1: true}
	multipliers := []int64{1}
	for _, part := range strings.Split(sanitized, ",") {
		m, err := strconv.ParseInt(part, 10, 64)
		if err != nil || m <= 0 || seen[m] {
			continue
		}
		seen[m] = true
		multipliers = append(multipliers, m)
	}

	return BundleSpec{Multipliers: multipliers}, true
}

// RemoteSKU возвращает SKU варианта на маркетплейсе для множителя
func RemoteSKU(catalogSKU, separator string, multiplier int64) string {
	if multiplier == 1 {
		return catalogSKU
	}
	return fmt.Sprintf("%s%s%d", catalogSKU, separator, multiplier)
}

// RemoteQuantity возвращает количество для выгрузки: комплект размера m
// собирается только из целых кратных остатка.
func RemoteQuantity(available, multiplier int64) int64 {
	if multiplier <= 1 {
		return available
	}
	return available / multiplier
}

// SplitBundleSKU разбирает SKU строки заказа: отделяет суффикс-множитель
// составного SKU и возвращает каталожный SKU. Невалидный суффикс не
// считается множителем: SKU остается как есть, множитель равен 1,
// warning описывает проблему для лога.
func SplitBundleSKU(rawSKU, separator string) (sku string, multiplier int64, warning string) {
	parts := strings.Split(rawSKU, separator)
	isBundled := len(parts) > 1

	if len(parts) > 2 {
		warning = "bundle sku contains more than one separator"
	}

	last := parts[len(parts)-1]
	valid := digitsRe.MatchString(last)
	m, _ := strconv.ParseInt(last, 10, 64)

	if isBundled && valid && m > 0 {
		return strings.Join(parts[:len(parts)-1], separator), m, warning
	}

	if isBundled {
		if warning != "" {
			warning += "; "
		}
		warning += "invalid bundle sku multiplier, multiplier set to 1"
	}
	return rawSKU, 1, warning
}

// PushSeverity — исход одной попытки выгрузки остатка
type PushSeverity int

const (
	// PushSkipped — выгрузка не выполнялась
	PushSkipped PushSeverity = iota
	// PushSuccess — остаток выгружен
	PushSuccess
	// PushFailed — выгрузка не удалась
	PushFailed
)

// String возвращает имя исхода
func (s PushSeverity) String() string {
	switch s {
	case PushSkipped:
		return "skipped"
	case PushSuccess:
		return "success"
	case PushFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PushResult — результат выгрузки одного SKU-варианта
type PushResult struct {
	SKU      string
	Quantity int64
	Severity PushSeverity
	Err      error
}

// PushOutcome агрегирует результаты по множителям одного стокайтема.
// Худший исход побеждает: один сбой делает весь прогон неуспешным,
// но не мешает попыткам по остальным множителям.
type PushOutcome struct {
	results []PushResult
	worst   PushSeverity
}

// Add добавляет результат одной попытки
func (o *PushOutcome) Add(result PushResult) {
	o.results = append(o.results, result)
	if result.Severity > o.worst {
		o.worst = result.Severity
	}
}

// Worst возвращает худший из накопленных исходов
func (o *PushOutcome) Worst() PushSeverity {
	return o.worst
}

// Results возвращает накопленные результаты
func (o *PushOutcome) Results() []PushResult {
	return o.results
}

// Success возвращает nil, если ни одна выгрузка не выполнялась,
// иначе признак того, что все попытки завершились успешно.
func (o *PushOutcome) Success() *bool {
	attempted := false
	allOK := true
	for _, r := range o.results {
		if r.Severity == PushSkipped {
			continue
		}
		attempted = true
		if r.Severity != PushSuccess {
			allOK = false
		}
	}
	if !attempted {
		return nil
	}
	return &allOK
}
