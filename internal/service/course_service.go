package service

import (
	"context"
	"net/url"

	"github.com/noah-isme/halqat/internal/dto"
	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/repository"
)

type courseService struct {
	mutator
}

// NewCourseService constructs the course mutation handler.
func NewCourseService(deps MutationDeps) MutationHandler {
	return &courseService{mutator: newMutator(deps, "course", models.PermManageCourses, KindCourses)}
}

func (s *courseService) Handle(ctx context.Context, rc RequestContext, action string, form url.Values) MutationResult {
	return s.dispatch(ctx, rc, action, form, map[string]actionFunc{
		"add":      s.add,
		"edit":     s.edit,
		"delete":   s.deactivate,
		"activate": s.activate,
	})
}

func (s *courseService) add(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	var payload dto.CourseForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}
	duplicate := "A course named \"" + payload.Name + "\" already exists"

	id, err := s.transact(ctx, rc, "add", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		if taken, err := tx.Courses.NameTaken(ctx, payload.Name, 0); err != nil {
			return 0, nil, err
		} else if taken {
			return 0, nil, conflict("%s", duplicate)
		}

		course := models.Course{
			Name:        payload.Name,
			TotalPages:  payload.TotalPages,
			Category:    payload.Category,
			Level:       payload.Level,
			Description: payload.Description,
			Status:      models.StatusActive,
		}
		if err := tx.Courses.Create(ctx, &course); err != nil {
			return 0, nil, uniqueConflict(err, duplicate)
		}
		return course.ID, map[string]interface{}{"name": course.Name}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Course added successfully", id: id}, nil
}

func (s *courseService) edit(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}
	var payload dto.CourseForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}
	duplicate := "A course named \"" + payload.Name + "\" already exists"

	_, err = s.transact(ctx, rc, "edit", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		if _, err := tx.Courses.GetByID(ctx, id); err != nil {
			return 0, nil, notFound(err)
		}
		if taken, err := tx.Courses.NameTaken(ctx, payload.Name, id); err != nil {
			return 0, nil, err
		} else if taken {
			return 0, nil, conflict("%s", duplicate)
		}

		updates := map[string]interface{}{
			"name":        payload.Name,
			"total_pages": payload.TotalPages,
			"category":    payload.Category,
			"level":       payload.Level,
			"description": payload.Description,
		}
		if err := tx.Courses.Update(ctx, id, updates); err != nil {
			return 0, nil, uniqueConflict(notFound(err), duplicate)
		}
		return id, map[string]interface{}{"name": payload.Name}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Course updated successfully", id: id}, nil
}

func (s *courseService) deactivate(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}

	_, err = s.transact(ctx, rc, "delete", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		course, err := tx.Courses.GetByID(ctx, id)
		if err != nil {
			return 0, nil, notFound(err)
		}
		if err := models.CourseLifecycle.Transition(course.Status, models.StatusInactive); err != nil {
			return 0, nil, conflict("%s", err.Error())
		}
		active, err := tx.Students.CountActiveByCourse(ctx, id)
		if err != nil {
			return 0, nil, err
		}
		if active > 0 {
			return 0, nil, conflict("Cannot deactivate course %q: %d active students are still enrolled", course.Name, active)
		}
		if err := tx.Courses.SetStatus(ctx, id, models.StatusInactive); err != nil {
			return 0, nil, notFound(err)
		}
		return id, map[string]interface{}{"name": course.Name, "status": models.StatusInactive}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Course deactivated successfully", id: id}, nil
}

func (s *courseService) activate(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}

	_, err = s.transact(ctx, rc, "activate", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		course, err := tx.Courses.GetByID(ctx, id)
		if err != nil {
			return 0, nil, notFound(err)
		}
		if err := models.CourseLifecycle.Transition(course.Status, models.StatusActive); err != nil {
			return 0, nil, conflict("%s", err.Error())
		}
		if err := tx.Courses.SetStatus(ctx, id, models.StatusActive); err != nil {
			return 0, nil, notFound(err)
		}
		return id, map[string]interface{}{"name": course.Name, "status": models.StatusActive}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Course activated successfully", id: id}, nil
}
