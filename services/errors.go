package services

import "errors"

// Общие ошибки движка, используемые в разных сервисах и маппинге HTTP.
var (
	// Не найдено
	ErrEventNotFound = errors.New("event not found")
	ErrMatchNotFound = errors.New("match not found")

	// Авторизация
	ErrNotEventOwner  = errors.New("only the event owner can perform this action")
	ErrFormatMismatch = errors.New("operation does not match the event format")

	// Конфликты
	ErrAlreadyGenerated     = errors.New("matches have already been generated for this event")
	ErrMatchAlreadyFinished = errors.New("match is already finished")
	ErrMatchNotReady        = errors.New("match is not ready to be played")
	ErrDrawNotAllowed       = errors.New("a knockout match cannot end in a draw")

	// Ошибки состояния
	ErrEventFinished         = errors.New("event is already finished")
	ErrInsufficientTeams     = errors.New("at least two approved teams are required")
	ErrSettingsNotConfigured = errors.New("round robin settings are not configured")

	// Ошибки валидации
	ErrNegativeScore      = errors.New("scores must be zero or positive")
	ErrEmptyScoreList     = errors.New("round scores must not be empty")
	ErrInvalidRoundNumber = errors.New("round number must be positive")
	ErrInvalidTeamID      = errors.New("team id must be positive")
)
