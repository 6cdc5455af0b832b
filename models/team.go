package models

// Team - ссылка на команду, одобренную для участия в событии.
// Список одобренных команд читается как неизменяемый снимок на момент генерации.
type Team struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
