package models

// User представляет зарегистрированного пользователя портала.
type User struct {
	ID          string `json:"id"`          // Уникальный идентификатор
	Email       string `json:"email"`       // Электронная почта в нижнем регистре, уникальна
	DisplayName string `json:"displayName"` // Отображаемое имя
	Credential  string `json:"credential"`  // Соль и digest пароля, см. пакет credential
}

// UserView — представление пользователя без учётных данных.
type UserView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// View возвращает пользователя без учётных данных.
func (u User) View() UserView {
	return UserView{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}
