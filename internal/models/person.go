package models

import "fmt"

// PersonKind discriminates the Person union
type PersonKind int

const (
	KindStudent PersonKind = iota + 1
	KindTeacher
)

func (k PersonKind) String() string {
	switch k {
	case KindStudent:
		return "student"
	case KindTeacher:
		return "teacher"
	default:
		return fmt.Sprintf("PersonKind(%d)", int(k))
	}
}

// Person is either a Student or a Teacher. Exactly one of the pointers is set,
// matching Kind.
type Person struct {
	Kind    PersonKind
	Student *Student
	Teacher *Teacher
}

// StudentPerson wraps a student
func StudentPerson(s Student) Person {
	return Person{Kind: KindStudent, Student: &s}
}

// TeacherPerson wraps a teacher
func TeacherPerson(t Teacher) Person {
	return Person{Kind: KindTeacher, Teacher: &t}
}

func (p Person) ID() string {
	switch p.Kind {
	case KindStudent:
		return p.Student.ID
	case KindTeacher:
		return p.Teacher.ID
	default:
		panic(fmt.Sprintf("models: unknown person kind %v", p.Kind))
	}
}

func (p Person) NameParts() (string, string) {
	switch p.Kind {
	case KindStudent:
		return p.Student.NameParts()
	case KindTeacher:
		return p.Teacher.NameParts()
	default:
		panic(fmt.Sprintf("models: unknown person kind %v", p.Kind))
	}
}

func (p Person) CurrentLocID() string {
	switch p.Kind {
	case KindStudent:
		return p.Student.CurrentLocID
	case KindTeacher:
		return p.Teacher.CurrentLocID
	default:
		panic(fmt.Sprintf("models: unknown person kind %v", p.Kind))
	}
}

// FullName returns "First Last"
func (p Person) FullName() string {
	first, last := p.NameParts()
	return first + " " + last
}
