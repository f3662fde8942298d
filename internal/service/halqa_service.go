package service

import (
	"context"
	"net/url"

	"github.com/noah-isme/halqat/internal/dto"
	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/repository"
)

type halqaService struct {
	mutator
}

// NewHalqaService constructs the study circle mutation handler. Teacher-scoped stats of the
// lists that follow a halqa are invalidated along with its own.
func NewHalqaService(deps MutationDeps) MutationHandler {
	return &halqaService{mutator: newMutator(deps, "halqa", models.PermManageHalaqat, KindHalaqat, KindStudents, KindAttendance, KindGrades)}
}

func (s *halqaService) Handle(ctx context.Context, rc RequestContext, action string, form url.Values) MutationResult {
	return s.dispatch(ctx, rc, action, form, map[string]actionFunc{
		"add":      s.add,
		"edit":     s.edit,
		"delete":   s.deactivate,
		"activate": s.activate,
	})
}

func (s *halqaService) add(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	var payload dto.HalqaForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}

	id, err := s.transact(ctx, rc, "add", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		if err := s.checkTeacher(ctx, tx, payload.TeacherID); err != nil {
			return 0, nil, err
		}
		if taken, err := tx.Halaqat.NameTaken(ctx, payload.Name, 0); err != nil {
			return 0, nil, err
		} else if taken {
			return 0, nil, conflict("A halqa named %q already exists", payload.Name)
		}

		halqa := models.Halqa{
			Name:         payload.Name,
			TeacherID:    optionalID(payload.TeacherID),
			Capacity:     payload.Capacity,
			ScheduleDays: payload.ScheduleDays,
			ScheduleTime: payload.ScheduleTime,
			Location:     payload.Location,
			Level:        payload.Level,
			Gender:       payload.Gender,
			Status:       models.StatusActive,
			Notes:        payload.Notes,
		}
		if err := tx.Halaqat.Create(ctx, &halqa); err != nil {
			return 0, nil, uniqueConflict(err, "A halqa named \""+payload.Name+"\" already exists")
		}
		return halqa.ID, map[string]interface{}{"name": halqa.Name}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Halqa added successfully", id: id}, nil
}

func (s *halqaService) edit(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}
	var payload dto.HalqaForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}

	_, err = s.transact(ctx, rc, "edit", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		if _, err := tx.Halaqat.GetByID(ctx, id); err != nil {
			return 0, nil, notFound(err)
		}
		if err := s.checkTeacher(ctx, tx, payload.TeacherID); err != nil {
			return 0, nil, err
		}
		if taken, err := tx.Halaqat.NameTaken(ctx, payload.Name, id); err != nil {
			return 0, nil, err
		} else if taken {
			return 0, nil, conflict("A halqa named %q already exists", payload.Name)
		}
		if payload.Capacity > 0 {
			enrolled, err := tx.Students.CountActiveByHalqa(ctx, id)
			if err != nil {
				return 0, nil, err
			}
			if enrolled > int64(payload.Capacity) {
				return 0, nil, invalid("capacity", "Capacity cannot be lower than the %d students already enrolled", enrolled)
			}
		}

		updates := map[string]interface{}{
			"name":          payload.Name,
			"teacher_id":    optionalID(payload.TeacherID),
			"capacity":      payload.Capacity,
			"schedule_days": payload.ScheduleDays,
			"schedule_time": payload.ScheduleTime,
			"location":      payload.Location,
			"level":         payload.Level,
			"gender":        payload.Gender,
			"notes":         payload.Notes,
		}
		if err := tx.Halaqat.Update(ctx, id, updates); err != nil {
			return 0, nil, uniqueConflict(notFound(err), "A halqa named \""+payload.Name+"\" already exists")
		}
		return id, map[string]interface{}{"name": payload.Name}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Halqa updated successfully", id: id}, nil
}

func (s *halqaService) deactivate(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}

	_, err = s.transact(ctx, rc, "delete", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		halqa, err := tx.Halaqat.GetByID(ctx, id)
		if err != nil {
			return 0, nil, notFound(err)
		}
		if err := models.HalqaLifecycle.Transition(halqa.Status, models.StatusInactive); err != nil {
			return 0, nil, conflict("%s", err.Error())
		}
		active, err := tx.Students.CountActiveByHalqa(ctx, id)
		if err != nil {
			return 0, nil, err
		}
		if active > 0 {
			return 0, nil, conflict("Cannot deactivate halqa %q: %d active students are still enrolled", halqa.Name, active)
		}
		if err := tx.Halaqat.SetStatus(ctx, id, models.StatusInactive); err != nil {
			return 0, nil, notFound(err)
		}
		return id, map[string]interface{}{"name": halqa.Name, "status": models.StatusInactive}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Halqa deactivated successfully", id: id}, nil
}

func (s *halqaService) activate(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}

	_, err = s.transact(ctx, rc, "activate", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		halqa, err := tx.Halaqat.GetByID(ctx, id)
		if err != nil {
			return 0, nil, notFound(err)
		}
		if err := models.HalqaLifecycle.Transition(halqa.Status, models.StatusActive); err != nil {
			return 0, nil, conflict("%s", err.Error())
		}
		if err := tx.Halaqat.SetStatus(ctx, id, models.StatusActive); err != nil {
			return 0, nil, notFound(err)
		}
		return id, map[string]interface{}{"name": halqa.Name, "status": models.StatusActive}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Halqa activated successfully", id: id}, nil
}

// checkTeacher accepts an empty assignment or an active teacher account.
func (s *halqaService) checkTeacher(ctx context.Context, tx *repository.Store, teacherID uint) error {
	if teacherID == 0 {
		return nil
	}
	teacher, err := tx.Users.GetByID(ctx, teacherID)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return invalid("teacher_id", "The selected teacher does not exist")
		}
		return err
	}
	if teacher.Role != models.RoleTeacher || !teacher.IsActive {
		return invalid("teacher_id", "The selected user is not an active teacher")
	}
	return nil
}

func optionalID(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}
