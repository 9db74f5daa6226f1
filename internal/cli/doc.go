// Package cli — команды оператора: отправка jobs, просмотр статуса,
// управление конфигурациями и dead-letter deliveries через HTTP API.
//
// Пакет не импортирует internal/api: CLI общается с сервисом только
// по wire-протоколу, как любой внешний клиент.
package cli
