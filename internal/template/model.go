package template

import "time"

// Holiday é um feriado da agenda. Date usa o formato 2006-01-02.
type Holiday struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// Shift é um turno de trabalho (HH:MM).
type Shift struct {
	Entry string `json:"entry"`
	Exit  string `json:"exit"`
}

// Template é uma agenda semanal selecionável pelo tenant. WeekStart e
// WeekEnd usam a convenção 0 = domingo .. 6 = sábado.
type Template struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Holidays        []Holiday  `json:"holidays"`
	HolidayListName string     `json:"holidayListName,omitempty"`
	WeekStart       int        `json:"weekStart"`
	WeekEnd         int        `json:"weekEnd"`
	Shifts          []Shift    `json:"shifts"`
	UserID          string     `json:"userId"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// HolidayInput aceita data simples ou RFC 3339.
type HolidayInput struct {
	Date string `json:"date" validate:"required,notblank"`
	Name string `json:"name" validate:"required,notblank"`
}

type ShiftInput struct {
	Entry string `json:"entry" validate:"required,notblank"`
	Exit  string `json:"exit" validate:"required,notblank"`
}

// Input é o corpo de criação e atualização.
type Input struct {
	Name            string         `json:"name" validate:"required,notblank"`
	Holidays        []HolidayInput `json:"holidays" validate:"dive"`
	HolidayListName *string        `json:"holidayListName"`
	WeekStart       *int           `json:"weekStart" validate:"required,min=0,max=6"`
	WeekEnd         *int           `json:"weekEnd" validate:"required,min=0,max=6"`
	Shifts          []ShiftInput   `json:"shifts" validate:"dive"`
}
