// Пакет lifecycle — конечный автомат жизненного цикла медиа-актива.
//
// Переходы:
//   - active → orphaned        (владелец удалён, актив скрыт)
//   - active → archived        (архивация, актив скрыт)
//   - active|archived|orphaned → pending_delete (пометка на удаление)
//   - pending_delete → deleted (терминальный, запускает каскадную очистку)
//   - archived → active        (restore — единственный обратный переход)
//
// Все переходы — чистые функции над in-memory представлением актива.
// Сохранение нового состояния — ответственность вызывающего кода
// (автосохранения нет). Переход в уже текущий статус — no-op.
package lifecycle

import (
	"fmt"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

// validTransitions — матрица допустимых переходов.
// Ключ — текущий статус, значение — набор допустимых целевых статусов.
var validTransitions = map[model.AssetStatus]map[model.AssetStatus]bool{
	model.StatusActive: {
		model.StatusOrphaned:      true,
		model.StatusArchived:      true,
		model.StatusPendingDelete: true,
	},
	model.StatusOrphaned: {
		model.StatusPendingDelete: true,
	},
	model.StatusArchived: {
		model.StatusActive:        true, // restore — единственный обратный переход
		model.StatusPendingDelete: true,
	},
	model.StatusPendingDelete: {
		model.StatusDeleted: true,
	},
	model.StatusDeleted: {}, // Терминальный статус — переходы запрещены
}

// TransitionError — ошибка недопустимого перехода жизненного цикла.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// transition выполняет общий переход: валидация матрицы + смена статуса.
// Переход в текущий статус — no-op (возвращает nil без изменений актива).
func transition(a *model.MediaAsset, target model.AssetStatus) (applied bool, err error) {
	if a.Status == target {
		return false, nil
	}

	targets, ok := validTransitions[a.Status]
	if !ok || !targets[target] {
		return false, &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("переход %s → %s недопустим", a.Status, target),
		}
	}

	a.Status = target
	return true, nil
}

// Archive переводит актив в archived и принудительно скрывает его.
func Archive(a *model.MediaAsset) error {
	applied, err := transition(a, model.StatusArchived)
	if err != nil {
		return err
	}
	if applied {
		a.Visible = false
	}
	return nil
}

// Restore возвращает архивный актив в active и восстанавливает видимость.
func Restore(a *model.MediaAsset) error {
	applied, err := transition(a, model.StatusActive)
	if err != nil {
		return err
	}
	if applied {
		a.Visible = true
	}
	return nil
}

// MarkOrphaned переводит актив в orphaned: ссылка на владельца очищается,
// актив сохраняется, но скрывается из выдачи.
func MarkOrphaned(a *model.MediaAsset) error {
	applied, err := transition(a, model.StatusOrphaned)
	if err != nil {
		return err
	}
	if applied {
		a.OwnerID = nil
		a.Visible = false
	}
	return nil
}

// MarkPendingDelete помечает актив на удаление и скрывает его.
// Допустим из active, archived и orphaned.
func MarkPendingDelete(a *model.MediaAsset) error {
	applied, err := transition(a, model.StatusPendingDelete)
	if err != nil {
		return err
	}
	if applied {
		a.Visible = false
	}
	return nil
}

// Delete переводит актив в терминальный deleted.
// Физическая каскадная очистка (sub-records, события просмотров) —
// отдельный механизм хранилища, автомат управляет только статусом.
func Delete(a *model.MediaAsset) error {
	_, err := transition(a, model.StatusDeleted)
	return err
}

// CanTransition проверяет, допустим ли переход из from в target.
// Переход в тот же статус считается допустимым (no-op).
func CanTransition(from, target model.AssetStatus) bool {
	if from == target {
		return true
	}
	targets, ok := validTransitions[from]
	return ok && targets[target]
}

// isValidStatus проверяет, является ли строка допустимым статусом.
func isValidStatus(s model.AssetStatus) bool {
	switch s {
	case model.StatusActive, model.StatusOrphaned, model.StatusArchived,
		model.StatusPendingDelete, model.StatusDeleted:
		return true
	default:
		return false
	}
}

// ParseStatus преобразует строку в AssetStatus.
// Возвращает ошибку для недопустимых значений.
func ParseStatus(s string) (model.AssetStatus, error) {
	st := model.AssetStatus(s)
	if !isValidStatus(st) {
		return "", fmt.Errorf("недопустимый статус: %q, допустимые: active, orphaned, archived, pending_delete, deleted", s)
	}
	return st, nil
}
