package model

// Роли субъектов.
const (
	RoleReadonly = "readonly"
	RoleAdmin    = "admin"
)

// Actor — субъект, выполняющий операцию (пользователь или сервисный аккаунт).
type Actor struct {
	// Subject — sub из JWT
	Subject string
	// Role — итоговая роль (admin, readonly, "")
	Role string
}

// Anonymous — субъект без аутентификации.
var Anonymous = Actor{}
