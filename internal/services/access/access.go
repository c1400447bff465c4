// Package access решает, можно ли показать клиенту ссылку доступа к подписке.
//
// Для оплаты переводом ссылка открывается только после того, как оператор
// проверил загруженное подтверждение (скрин постоянного поручения).
package access

import "github.com/magabrotheeeer/abo-portal/internal/models"

// Prompt — подсказка клиенту, что мешает увидеть доступ.
type Prompt string

const (
	PromptNone                 Prompt = ""
	PromptNotActive            Prompt = "not-active"
	PromptUploadProof          Prompt = "upload-proof"
	PromptAwaitingVerification Prompt = "awaiting-verification"
)

// Decision — результат проверки доступа.
type Decision struct {
	Visible    bool    `json:"visible"`
	AccessLink *string `json:"accessLink,omitempty"`
	Prompt     Prompt  `json:"prompt,omitempty"`
}

// Visible сообщает, видна ли клиенту информация о доступе.
func Visible(r models.Request) bool {
	if r.Status != models.StatusActive {
		return false
	}
	return r.Payment != models.PaymentBankTransfer || (r.Proof != nil && r.Proof.Verified)
}

// Disclose возвращает ссылку доступа, если она видна, иначе подсказку.
func Disclose(r models.Request) Decision {
	if Visible(r) {
		return Decision{Visible: true, AccessLink: r.AccessLink}
	}
	switch {
	case r.Status != models.StatusActive:
		return Decision{Prompt: PromptNotActive}
	case r.Proof == nil:
		return Decision{Prompt: PromptUploadProof}
	default:
		return Decision{Prompt: PromptAwaitingVerification}
	}
}
