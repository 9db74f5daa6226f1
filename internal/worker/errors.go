package worker

import "errors"

// Sentinel errors пакета worker.
var (
	// ErrConfigurationNotFound — конфигурация job недоступна.
	// Job помечается failed без retry: повторная попытка не поможет.
	ErrConfigurationNotFound = errors.New("configuration not found")

	// ErrInvalidPayload — payload сообщения не проходит декодирование.
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrJobTimeout — обработка job превысила лимит времени.
	ErrJobTimeout = errors.New("job processing timed out")
)
