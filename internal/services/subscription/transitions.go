package subscription

import "github.com/magabrotheeeer/abo-portal/internal/models"

// transitions — единственная таблица допустимых смен статуса.
var transitions = map[models.Status][]models.Status{
	models.StatusPreRegistration: {models.StatusPendingReview, models.StatusActive, models.StatusRejected, models.StatusWithdrawn},
	models.StatusPendingReview:   {models.StatusActive, models.StatusRejected, models.StatusWithdrawn},
	models.StatusActive:          {models.StatusPaused, models.StatusCancelled},
	models.StatusPaused:          {models.StatusActive, models.StatusCancelled},
}

// CanTransition сообщает, разрешён ли переход from -> to.
func CanTransition(from, to models.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Allowed возвращает статусы, в которые можно перейти из from.
func Allowed(from models.Status) []models.Status {
	out := make([]models.Status, len(transitions[from]))
	copy(out, transitions[from])
	return out
}
