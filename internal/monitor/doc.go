// Package monitor наблюдает за глубиной очереди requests.
//
// По cron-расписанию (каждые 15 секунд) считает строки в каждом
// состоянии и выставляет Prometheus-гейдж courier_requests{state}.
// Работает внутри процесса воркера; сбой сбора не влияет на доставку.
package monitor
