package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRecord is the backend's authoritative copy of a user after onboarding.
type UserRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UID       string             `bson:"uid" json:"uid"` // Stable identifier from the auth provider, unique
	Email     string             `bson:"email" json:"email"`
	FirstName string             `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName  string             `bson:"lastName,omitempty" json:"lastName,omitempty"`

	Profile *UserProfile    `bson:"profile,omitempty" json:"profile,omitempty"`
	Derived *DerivedMetrics `bson:"derived,omitempty" json:"derived,omitempty"`

	OnboardingComplete bool       `bson:"onboardingComplete" json:"onboardingComplete"`
	CompletedAt        *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CreatedAt          time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// NewUserFields are the minimum fields required to create a backend record.
type NewUserFields struct {
	UID       string
	Email     string
	FirstName string
	LastName  string
}

// ProfileUpdate is the full update applied to a backend record on completion.
type ProfileUpdate struct {
	Profile            UserProfile
	Derived            DerivedMetrics
	OnboardingComplete bool
	CompletedAt        time.Time
}
