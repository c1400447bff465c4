// Package models содержит доменные структуры портала: заявку на подписку с историей
// и подтверждением оплаты, пользователя, сообщение входящих и тариф каталога.
// Имена JSON-полей совпадают с форматом хранения и импорта/экспорта.
package models

import (
	"strings"
	"time"
)

// Status — статус заявки.
type Status string

const (
	StatusPreRegistration Status = "pre-registration"
	StatusPendingReview   Status = "pending-review"
	StatusActive          Status = "active"
	StatusPaused          Status = "paused"
	StatusCancelled       Status = "cancelled"
	StatusRejected        Status = "rejected"
	StatusWithdrawn       Status = "withdrawn"
)

// Statuses перечисляет все известные статусы.
var Statuses = []Status{
	StatusPreRegistration,
	StatusPendingReview,
	StatusActive,
	StatusPaused,
	StatusCancelled,
	StatusRejected,
	StatusWithdrawn,
}

// Valid сообщает, является ли статус известным значением.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal сообщает, что из статуса нет дальнейших переходов.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusRejected || s == StatusWithdrawn
}

// Cycle — период оплаты.
type Cycle string

const (
	CycleMonthly Cycle = "monthly"
	CycleYearly  Cycle = "yearly"
)

// PaymentMethod — способ оплаты. Только частные способы: перевод или наличные.
type PaymentMethod string

const (
	PaymentBankTransfer PaymentMethod = "bank-transfer"
	PaymentCash         PaymentMethod = "cash"
)

// Requester — данные из формы заявителя.
type Requester struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,mailbox"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Proof — загруженное подтверждение оплаты (например, скрин постоянного поручения).
// Payload — непрозрачная ссылка на содержимое (data URL или ключ хранилища).
type Proof struct {
	Payload  string `json:"payload"`
	Mimetype string `json:"mimetype"`
	Verified bool   `json:"verified"`
}

// HistoryEntry — запись журнала действий по заявке.
type HistoryEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
}

// Request — заявка на подписку или предварительная запись.
// ID и Price не меняются после создания, History только растёт.
type Request struct {
	ID        string    `json:"id"`
	PlanID    string    `json:"plan"`
	Cycle     Cycle     `json:"cycle"`
	Price     float64   `json:"price"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	Requester
	Payment     PaymentMethod  `json:"payment"`
	UserID      *string        `json:"userId"`
	StartDate   time.Time      `json:"startDate"`
	NextBilling time.Time      `json:"nextBilling"`
	AccessLink  *string        `json:"accessLink"`
	Proof       *Proof         `json:"proof"`
	History     []HistoryEntry `json:"history"`
}

// OwnedBy сообщает, принадлежит ли заявка пользователю:
// по ссылке на пользователя либо по совпадению email без учёта регистра.
func (r *Request) OwnedBy(u *User) bool {
	if u == nil {
		return false
	}
	if r.UserID != nil && *r.UserID == u.ID {
		return true
	}
	return r.Email != "" && strings.EqualFold(strings.TrimSpace(r.Email), u.Email)
}

// Append добавляет запись в журнал.
func (r *Request) Append(at time.Time, actor, action string) {
	r.History = append(r.History, HistoryEntry{At: at, Actor: actor, Action: action})
}
