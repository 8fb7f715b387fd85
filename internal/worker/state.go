package worker

import (
	"fmt"

	"tradeguard/internal/models"
)

// ValidTransitions - машина состояний воркера
//
// starting -> running <-> paused, running -> error (восстановимо,
// error -> running на следующем успешном job), любое -> stopped
// (терминально).
var ValidTransitions = map[string]map[string]bool{
	models.WorkerStarting: {
		models.WorkerRunning: true,
		models.WorkerPaused:  true,
		models.WorkerError:   true,
		models.WorkerStopped: true,
	},
	models.WorkerRunning: {
		models.WorkerPaused:  true,
		models.WorkerError:   true,
		models.WorkerStopped: true,
	},
	models.WorkerPaused: {
		models.WorkerRunning: true,
		models.WorkerError:   true,
		models.WorkerStopped: true,
	},
	models.WorkerError: {
		models.WorkerRunning: true,
		models.WorkerPaused:  true,
		models.WorkerStopped: true,
	},
	models.WorkerStopped: {}, // терминальное
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	return ValidTransitions[from][to]
}

// Transition возвращает ошибку на недопустимый переход
func Transition(from, to string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid worker transition %s -> %s", from, to)
	}
	return nil
}
