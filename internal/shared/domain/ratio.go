package domain

// Ratio représente un taux de conversion borné dans [0, 1]
type Ratio struct {
	value float64
}

// NewRatio calcule un taux numérateur/dénominateur
// Retourne 0 quand le dénominateur est nul, jamais de division par zéro
// Le résultat est borné à 1 (données bruitées: achats sans vue préalable)
func NewRatio(numerator, denominator float64) Ratio {
	if denominator <= 0 {
		return Ratio{}
	}
	v := numerator / denominator
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return Ratio{value: v}
}

// Value retourne le taux
func (r Ratio) Value() float64 {
	return r.value
}

// IsZero vérifie si le taux est nul
func (r Ratio) IsZero() bool {
	return r.value == 0
}

// Below vérifie si le taux est strictement sous un seuil
func (r Ratio) Below(threshold float64) bool {
	return r.value < threshold
}
