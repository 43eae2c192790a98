package models

import "time"

// ChallengeSubmission ist die abgegebene Antwort eines Users auf eine
// Challenge. Pro (user, challenge) genau ein Datensatz; wird nie geändert.
type ChallengeSubmission struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	UserID      string `json:"user_id" gorm:"index:idx_submissions_user_challenge,unique;not null"`
	ChallengeID uint   `json:"challenge_id" gorm:"index:idx_submissions_user_challenge,unique;not null"`

	SelectedOption string `json:"selected_option" gorm:"size:1;not null"`
	IsCorrect      bool   `json:"is_correct"`
}

// TableName gibt explizit den Tabellennamen an.
func (ChallengeSubmission) TableName() string {
	return "challenge_submissions"
}
