package domain

// QuotaReport — ответ эндпоинта квоты поставщика данных.
//
// RawBody хранится без изменений: формат ответа не фиксирован.
// RemainingCalls заполнен, только если остаток удалось разобрать.
type QuotaReport struct {
	StatusCode     int
	RawBody        []byte
	RemainingCalls *int
}

// Remaining возвращает разобранный остаток вызовов.
func (q QuotaReport) Remaining() (int, bool) {
	if q.RemainingCalls == nil {
		return 0, false
	}
	return *q.RemainingCalls, true
}

// Below сообщает, что остаток известен и меньше min.
// min <= 0 отключает проверку.
func (q QuotaReport) Below(min int) bool {
	n, ok := q.Remaining()
	return ok && min > 0 && n < min
}

// Outputs — outputs стадии quota_check без пути к файлу.
func (q QuotaReport) Outputs() map[string]any {
	out := map[string]any{
		"status_code": q.StatusCode,
		"body_bytes":  len(q.RawBody),
	}
	if n, ok := q.Remaining(); ok {
		out["remaining_calls"] = n
	}
	return out
}
