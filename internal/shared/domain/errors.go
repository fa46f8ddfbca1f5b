package domain

import "fmt"

// StageError signale l'échec d'une étape du pipeline avec son contexte
// Le nom de l'étape et les volumes entrée/sortie suffisent au diagnostic
// sans relancer le run en mode verbeux
type StageError struct {
	Stage   string
	RowsIn  int
	RowsOut int
	Err     error
}

// NewStageError crée une erreur d'étape
func NewStageError(stage string, rowsIn, rowsOut int, err error) *StageError {
	return &StageError{Stage: stage, RowsIn: rowsIn, RowsOut: rowsOut, Err: err}
}

// Error implémente error
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed (rows in=%d, out=%d): %v", e.Stage, e.RowsIn, e.RowsOut, e.Err)
}

// Unwrap retourne l'erreur sous-jacente
func (e *StageError) Unwrap() error {
	return e.Err
}
