// Package engine отвечает за определение pipeline.
//
// Включает:
//   - parser.go — парсинг Definition из JSON, значения по умолчанию, валидация
//   - dag.go    — граф стадий по needs и топологический порядок выполнения
//
// Определение по умолчанию повторяет исходную автоматизацию:
//
//	quota_check → scanner (needs: quota_check), cron "0 12 * * 1-5", UTC
package engine
