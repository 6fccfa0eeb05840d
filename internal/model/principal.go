package model

// Principal — аутентифицированный субъект запроса.
// Передаётся явно в каждый вызов сервиса, глобального "текущего пользователя" нет.
type Principal struct {
	UserID      int64
	IsSuperuser bool
}
