package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Questionnaire holds the medical intake answers a patient fills in before
// their first consultation. Every field is optional; a nil pointer means the
// patient never provided the answer, which tools surface as an explicit null
// so the model can tell "not provided" from "omitted".
type Questionnaire struct {
	Age            *int    `bson:"age,omitempty" json:"age"`
	Gender         *string `bson:"gender,omitempty" json:"gender"`
	Height         *string `bson:"height,omitempty" json:"height"`
	Weight         *string `bson:"weight,omitempty" json:"weight"`
	MedicalHistory *string `bson:"medicalHistory,omitempty" json:"medical_history"`
	Medications    *string `bson:"medications,omitempty" json:"medications"`
	Allergies      *string `bson:"allergies,omitempty" json:"allergies"`
}

// User is a registered patient account.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"`
	PasswordHash  string             `bson:"passwordHash" json:"-"`
	DOB           string             `bson:"dob,omitempty" json:"dob,omitempty"`
	Role          string             `bson:"role" json:"role"`
	Status        string             `bson:"status" json:"status"`
	Questionnaire *Questionnaire     `bson:"questionnaire,omitempty" json:"questionnaire,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updated_at"`
}
