package api

import (
	"net/http"
	"time"
)

const (
	defaultNextCount = 5
	maxNextCount     = 50
)

// GetSchedule возвращает cron-выражение и ближайшие срабатывания.
// GET /api/v1/schedule?count=N
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	if h.schedule == nil {
		Unavailable(w, "schedule is not configured")
		return
	}

	count, ok := queryInt(r.URL.Query().Get("count"))
	if !ok {
		BadRequest(w, "invalid count")
		return
	}
	if count == 0 {
		count = defaultNextCount
	}
	if count > maxNextCount {
		count = maxNextCount
	}

	Success(w, ScheduleResponse{
		Cron:     h.schedule.String(),
		Timezone: h.schedule.Location().String(),
		Next:     h.schedule.NextN(time.Now(), count),
	})
}
