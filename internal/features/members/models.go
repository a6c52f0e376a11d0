// Package members ведёт состав участников сообществ в памяти процесса.
// models.go описывает участника и его отображаемое имя.
package members

import "time"

// Member — участник сообщества, которого видел бот.
type Member struct {
	UserID      int64
	CommunityID int64
	Username    string // @username (может быть пустым)
	FirstName   string
	LastName    string
	IsBot       bool
	Present     bool      // false после выхода из чата
	JoinedAt    time.Time // первое появление
	LastSeen    time.Time // последнее сообщение или вступление
}

// Profile — данные пользователя из апдейта.
type Profile struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	IsBot     bool
}

// DisplayName возвращает отображаемое имя пользователя.
// Если есть @username — возвращает его, иначе — имя + фамилию.
func (p Profile) DisplayName() string {
	if p.Username != "" {
		return "@" + p.Username
	}
	name := p.FirstName
	if p.LastName != "" {
		name += " " + p.LastName
	}
	if name == "" {
		return "участник"
	}
	return name
}

// DisplayName возвращает отображаемое имя участника.
func (m *Member) DisplayName() string {
	return Profile{Username: m.Username, FirstName: m.FirstName, LastName: m.LastName}.DisplayName()
}
