package model

// Category is one of the fixed ASMR content categories.
type Category string

const (
	CategoryRoleplay          Category = "Roleplay"
	CategoryTapping           Category = "Tapping & Scratching"
	CategorySleepAid          Category = "Sleep Aid"
	CategoryPersonalAttention Category = "Personal Attention"
	CategoryEatingSounds      Category = "Eating Sounds"
	CategoryStudy             Category = "Study with Me"
	CategoryUnboxing          Category = "Unboxing"
	CategoryMeditation        Category = "Guided Meditation"
)

// DefaultCategory is preselected on a fresh form.
const DefaultCategory = CategoryRoleplay

// Categories lists every category in display order.
var Categories = []Category{
	CategoryRoleplay,
	CategoryTapping,
	CategorySleepAid,
	CategoryPersonalAttention,
	CategoryEatingSounds,
	CategoryStudy,
	CategoryUnboxing,
	CategoryMeditation,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// PlanRequest is the structured input for plan generation.
type PlanRequest struct {
	Topic       string   `json:"topic" validate:"required,notblank"`
	Category    Category `json:"category" validate:"required,category"`
	Duration    string   `json:"duration,omitempty"`
	Preferences string   `json:"preferences,omitempty"`
}

// VideoRequest is the input for a video preview.
type VideoRequest struct {
	Topic    string   `json:"topic" validate:"required,notblank"`
	Category Category `json:"category" validate:"required,category"`
}
