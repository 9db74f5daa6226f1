// Package api — HTTP-слой сервиса: приём jobs, чтение их статуса,
// управление конфигурациями и webhook deliveries.
//
// API не выполняет трансформации сам: CreateJob сохраняет job в БД
// и публикует событие в очередь, дальше работает Worker.
package api
