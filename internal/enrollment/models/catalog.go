package models

import id "academy/pkg/domain"

// Person, Course and Offering are owned by the academy's CRUD side; this
// service only reads them to label credentials.

type Person struct {
	ID          id.PersonID
	DisplayName string
	Email       string
}

type Course struct {
	ID   id.CourseID
	Name string
}

type Offering struct {
	ID       id.OfferingID
	CourseID id.CourseID
	Label    string
}
