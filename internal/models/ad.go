package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Category категория товара в объявлении
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryBooks       Category = "books"
	CategoryHome        Category = "home"
	CategoryOther       Category = "other"
)

// Categories перечисляет допустимые категории в порядке отображения
var Categories = []Category{CategoryElectronics, CategoryClothing, CategoryBooks, CategoryHome, CategoryOther}

// Valid сообщает, входит ли значение в закрытый список категорий
func (c Category) Valid() bool {
	switch c {
	case CategoryElectronics, CategoryClothing, CategoryBooks, CategoryHome, CategoryOther:
		return true
	}
	return false
}

// ParseCategory преобразует строку в Category
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("неизвестная категория %q", s)
	}
	return c, nil
}

// Condition состояние товара
type Condition string

const (
	ConditionNew    Condition = "new"
	ConditionUsed   Condition = "used"
	ConditionBroken Condition = "broken"
)

// Conditions перечисляет допустимые состояния товара
var Conditions = []Condition{ConditionNew, ConditionUsed, ConditionBroken}

func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionUsed, ConditionBroken:
		return true
	}
	return false
}

// ParseCondition преобразует строку в Condition
func ParseCondition(s string) (Condition, error) {
	c := Condition(s)
	if !c.Valid() {
		return "", fmt.Errorf("неизвестное состояние товара %q", s)
	}
	return c, nil
}

// Ad представляет объявление для обмена
type Ad struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    *string   `json:"image_url"`
	Category    Category  `json:"category"`
	Condition   Condition `json:"condition"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AdPatch содержит редактируемые владельцем поля. nil означает "не менять".
// is_active сюда намеренно не входит.
type AdPatch struct {
	Title       *string
	Description *string
	ImageURL    **string
	Category    *Category
	Condition   *Condition
}

// Apply применяет изменения к объявлению
func (p AdPatch) Apply(ad *Ad) {
	if p.Title != nil {
		ad.Title = *p.Title
	}
	if p.Description != nil {
		ad.Description = *p.Description
	}
	if p.ImageURL != nil {
		ad.ImageURL = *p.ImageURL
	}
	if p.Category != nil {
		ad.Category = *p.Category
	}
	if p.Condition != nil {
		ad.Condition = *p.Condition
	}
}

// AdFilter параметры поиска по каталогу активных объявлений
type AdFilter struct {
	Text      string
	Category  *Category
	Condition *Condition
	Page      int
	PageSize  int
}

// Offset возвращает смещение для страницы (страницы нумеруются с 1).
// При переполнении возвращает math.MaxInt, то есть пустую страницу.
func (f AdFilter) Offset() int {
	if f.Page < 1 || f.PageSize < 1 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.PageSize {
		return math.MaxInt
	}
	return (f.Page - 1) * f.PageSize
}

// AdPage страница результатов поиска
type AdPage struct {
	Ads      []Ad `json:"ads"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	Pages    int  `json:"pages"`
}

// NewAdPage собирает страницу и считает количество страниц
func NewAdPage(ads []Ad, total int, f AdFilter) AdPage {
	if ads == nil {
		ads = []Ad{}
	}
	pages := 0
	if f.PageSize > 0 {
		pages = (total + f.PageSize - 1) / f.PageSize
	}
	return AdPage{Ads: ads, Total: total, Page: f.Page, PageSize: f.PageSize, Pages: pages}
}
