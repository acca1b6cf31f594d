package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// maxCell — ширина текстовой ячейки таблицы. Ошибки стадий содержат
// вывод процессов и в таблице обрезаются; полный текст есть в --json.
const maxCell = 60

var (
	runHeaders      = []string{"ID", "TRIGGER", "STATUS", "IDEMPOTENCY_KEY", "CREATED"}
	runShowHeaders  = []string{"ID", "TRIGGER", "STATUS", "STARTED", "FINISHED", "ERROR"}
	stageHeaders    = []string{"POS", "NAME", "TYPE", "STATUS", "ERROR"}
	triggerHeaders  = []string{"KIND", "ACTOR", "IDEMPOTENCY_KEY", "FIRED_AT"}
	scheduleHeaders = []string{"#", "FIRE_AT", "CRON", "TZ"}
)

// Output форматирует runs, стадии и расписание для терминала или JSON.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(jsonMode, os.Stdout, os.Stderr)
}

// NewOutputTo создаёт Output с заданными потоками.
func NewOutputTo(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{jsonMode: jsonMode, w: w, errW: errW}
}

// Runs выводит список runs.
func (o *Output) Runs(runs []RunResponse) {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{r.ID, r.Trigger, r.Status, r.IdempotencyKey, r.CreatedAt}
	}
	o.print(runHeaders, rows, runs)
}

// Run выводит один run с временем выполнения и ошибкой.
func (o *Output) Run(r *RunResponse) {
	o.print(runShowHeaders, [][]string{runShowRow(*r)}, r)
}

// Stages выводит стадии run в порядке выполнения.
func (o *Output) Stages(stages []StageResponse) {
	o.print(stageHeaders, stageRows(stages), stages)
}

// Dispatched выводит принятый ручной trigger.
func (o *Output) Dispatched(d *DispatchResponse) {
	o.print(triggerHeaders, [][]string{{d.Kind, d.Actor, d.IdempotencyKey, d.FiredAt}}, d)
}

// Schedule выводит ближайшие времена срабатывания.
func (o *Output) Schedule(s *ScheduleResponse) {
	rows := make([][]string, len(s.Next))
	for i, at := range s.Next {
		rows[i] = []string{strconv.Itoa(i + 1), at, s.Cron, s.Timezone}
	}
	o.print(scheduleHeaders, rows, s)
}

// Local выводит run, выполненный в процессе CLI, вместе со стадиями.
func (o *Output) Local(res *LocalResult) {
	if o.jsonMode {
		o.JSON(res)
		return
	}
	o.Table(runShowHeaders, [][]string{runShowRow(res.Run)})
	fmt.Fprintln(o.w)
	o.Table(stageHeaders, stageRows(res.Stages))
}

// Outcome сообщает итог run в stderr. Для неуспешного run возвращает ошибку,
// чтобы команда завершилась с ненулевым кодом.
func (o *Output) Outcome(r RunResponse) error {
	if r.Status == "SUCCEEDED" {
		o.Success(fmt.Sprintf("Run %s succeeded", r.ID))
		return nil
	}
	if r.Error != "" {
		return fmt.Errorf("run %s finished with status %s: %s", r.ID, r.Status, r.Error)
	}
	return fmt.Errorf("run %s finished with status %s", r.ID, r.Status)
}

func runShowRow(r RunResponse) []string {
	return []string{r.ID, r.Trigger, r.Status, r.StartedAt, r.FinishedAt, cell(r.Error)}
}

func stageRows(stages []StageResponse) [][]string {
	rows := make([][]string, len(stages))
	for i, s := range stages {
		rows[i] = []string{strconv.Itoa(s.Position), s.Name, s.Type, s.Status, cell(s.Error)}
	}
	return rows
}

// cell приводит текст к одной строке и обрезает до maxCell.
func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxCell {
		return s
	}
	return s[:maxCell-3] + "..."
}

func (o *Output) print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}
