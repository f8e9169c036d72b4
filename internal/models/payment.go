package models

import "time"

// PaymentEvent records a processed provider payment notification.
// The primary key on EventID is what makes reconciliation exactly-once:
// a replayed delivery hits the conflict and grants nothing.
type PaymentEvent struct {
	EventID   string    `json:"event_id" db:"event_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Credits   int       `json:"credits" db:"credits"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CreditPlan is a purchasable credit package.
type CreditPlan struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Credits     int    `json:"credits"`
	Price       int64  `json:"price"` // in cents
	Description string `json:"description"`
}

// CreditPlans mirrors the packages offered on the credits page.
var CreditPlans = []CreditPlan{
	{ID: "basic", Name: "Plano Básico", Credits: 10, Price: 2990, Description: "Ideal para pequenos projetos"},
	{ID: "standard", Name: "Plano Padrão", Credits: 25, Price: 5990, Description: "Perfeito para projetos médios"},
	{ID: "premium", Name: "Plano Premium", Credits: 60, Price: 9990, Description: "Para profissionais e projetos grandes"},
}

// FindPlan returns the plan with the given id, or nil.
func FindPlan(id string) *CreditPlan {
	for i := range CreditPlans {
		if CreditPlans[i].ID == id {
			return &CreditPlans[i]
		}
	}
	return nil
}
