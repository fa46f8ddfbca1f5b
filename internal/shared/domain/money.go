package domain

import (
	"errors"
	"strconv"
)

// Money représente un montant de revenu avec garantie de non-négativité
type Money struct {
	amount float64
}

// NewMoney crée une nouvelle instance de Money avec validation
func NewMoney(amount float64) (Money, error) {
	if amount < 0 {
		return Money{}, errors.New("amount cannot be negative")
	}
	return Money{amount: amount}, nil
}

// MustNewMoney crée un Money en paniquant si invalide
func MustNewMoney(amount float64) Money {
	m, err := NewMoney(amount)
	if err != nil {
		panic("invalid money: " + err.Error())
	}
	return m
}

// Amount retourne le montant
func (m Money) Amount() float64 {
	return m.amount
}

// Add additionne deux Money
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount + other.amount}
}

// DivideBy divise le montant par un nombre d'observations (0 si n <= 0)
func (m Money) DivideBy(n int) Money {
	if n <= 0 {
		return Money{}
	}
	return Money{amount: m.amount / float64(n)}
}

// IsZero vérifie si le montant est zéro
func (m Money) IsZero() bool {
	return m.amount == 0
}

// String formate le montant avec deux décimales
func (m Money) String() string {
	return strconv.FormatFloat(m.amount, 'f', 2, 64)
}
