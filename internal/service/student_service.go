package service

import (
	"context"
	"net/url"
	"time"

	"github.com/noah-isme/halqat/internal/dto"
	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/repository"
)

type studentService struct {
	mutator
}

// NewStudentService constructs the student mutation handler. Enrolment changes also move the
// halqa and course counters, so their cached stats are invalidated too.
func NewStudentService(deps MutationDeps) MutationHandler {
	return &studentService{mutator: newMutator(deps, "student", models.PermManageStudents, KindStudents, KindHalaqat, KindCourses)}
}

func (s *studentService) Handle(ctx context.Context, rc RequestContext, action string, form url.Values) MutationResult {
	return s.dispatch(ctx, rc, action, form, map[string]actionFunc{
		"add":           s.add,
		"edit":          s.edit,
		"delete":        s.deactivate,
		"change_status": s.changeStatus,
	})
}

type studentDates struct {
	birth    *time.Time
	enrolled time.Time
}

func (s *studentService) parseDates(payload dto.StudentForm) (studentDates, error) {
	dates := studentDates{enrolled: s.today()}
	if payload.BirthDate != "" {
		birth, err := parseDate("birth_date", payload.BirthDate)
		if err != nil {
			return studentDates{}, err
		}
		if birth.After(dates.enrolled) {
			return studentDates{}, invalid("birth_date", "Birth date cannot be in the future")
		}
		dates.birth = &birth
	}
	if payload.EnrolledOn != "" {
		enrolled, err := parseDate("enrolled_on", payload.EnrolledOn)
		if err != nil {
			return studentDates{}, err
		}
		dates.enrolled = enrolled
	}
	return dates, nil
}

// checkPlacement verifies the halqa and course exist and are active, and that the halqa has room.
// currentHalqa is the student's existing halqa, which is not counted against capacity again.
func (s *studentService) checkPlacement(ctx context.Context, tx *repository.Store, halqaID, courseID, currentHalqa uint) error {
	halqa, err := tx.Halaqat.GetByID(ctx, halqaID)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return invalid("halqa_id", "The selected halqa does not exist")
		}
		return err
	}
	if halqa.Status != models.StatusActive {
		return invalid("halqa_id", "Halqa %q is not active", halqa.Name)
	}
	if halqa.Capacity > 0 && halqaID != currentHalqa {
		enrolled, err := tx.Students.CountActiveByHalqa(ctx, halqaID)
		if err != nil {
			return err
		}
		if enrolled >= int64(halqa.Capacity) {
			return conflict("Halqa %q is full (%d of %d places taken)", halqa.Name, enrolled, halqa.Capacity)
		}
	}

	course, err := tx.Courses.GetByID(ctx, courseID)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return invalid("course_id", "The selected course does not exist")
		}
		return err
	}
	if course.Status != models.StatusActive {
		return invalid("course_id", "Course %q is not active", course.Name)
	}
	return nil
}

func (s *studentService) add(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	var payload dto.StudentForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}
	dates, err := s.parseDates(payload)
	if err != nil {
		return outcome{}, err
	}
	duplicate := "A student with personal ID \"" + payload.PersonalID + "\" already exists"

	id, err := s.transact(ctx, rc, "add", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		if taken, err := tx.Students.PersonalIDTaken(ctx, payload.PersonalID, 0); err != nil {
			return 0, nil, err
		} else if taken {
			return 0, nil, conflict("%s", duplicate)
		}
		if err := s.checkPlacement(ctx, tx, payload.HalqaID, payload.CourseID, 0); err != nil {
			return 0, nil, err
		}

		student := models.Student{
			PersonalID:    payload.PersonalID,
			FullName:      payload.FullName,
			BirthDate:     dates.birth,
			Gender:        payload.Gender,
			Phone:         payload.Phone,
			GuardianName:  payload.GuardianName,
			GuardianPhone: payload.GuardianPhone,
			Address:       payload.Address,
			HalqaID:       payload.HalqaID,
			CourseID:      payload.CourseID,
			EnrolledOn:    dates.enrolled,
			Status:        models.StatusActive,
			Notes:         payload.Notes,
		}
		if err := tx.Students.Create(ctx, &student); err != nil {
			return 0, nil, uniqueConflict(err, duplicate)
		}
		return student.ID, map[string]interface{}{
			"personal_id": student.PersonalID,
			"halqa_id":    student.HalqaID,
			"course_id":   student.CourseID,
		}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Student added successfully", id: id}, nil
}

func (s *studentService) edit(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}
	var payload dto.StudentForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}
	dates, err := s.parseDates(payload)
	if err != nil {
		return outcome{}, err
	}
	duplicate := "A student with personal ID \"" + payload.PersonalID + "\" already exists"

	_, err = s.transact(ctx, rc, "edit", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		existing, err := tx.Students.GetByID(ctx, id)
		if err != nil {
			return 0, nil, notFound(err)
		}
		if taken, err := tx.Students.PersonalIDTaken(ctx, payload.PersonalID, id); err != nil {
			return 0, nil, err
		} else if taken {
			return 0, nil, conflict("%s", duplicate)
		}
		if existing.HalqaID != payload.HalqaID || existing.CourseID != payload.CourseID {
			if err := s.checkPlacement(ctx, tx, payload.HalqaID, payload.CourseID, existing.HalqaID); err != nil {
				return 0, nil, err
			}
		}

		updates := map[string]interface{}{
			"personal_id":    payload.PersonalID,
			"full_name":      payload.FullName,
			"birth_date":     dates.birth,
			"gender":         payload.Gender,
			"phone":          payload.Phone,
			"guardian_name":  payload.GuardianName,
			"guardian_phone": payload.GuardianPhone,
			"address":        payload.Address,
			"halqa_id":       payload.HalqaID,
			"course_id":      payload.CourseID,
			"notes":          payload.Notes,
		}
		if payload.EnrolledOn != "" {
			updates["enrolled_on"] = dates.enrolled
		}
		if err := tx.Students.Update(ctx, id, updates); err != nil {
			return 0, nil, uniqueConflict(notFound(err), duplicate)
		}

		metadata := map[string]interface{}{"personal_id": payload.PersonalID}
		if existing.HalqaID != payload.HalqaID {
			metadata["from_halqa_id"] = existing.HalqaID
			metadata["to_halqa_id"] = payload.HalqaID
		}
		return id, metadata, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Student updated successfully", id: id}, nil
}

func (s *studentService) deactivate(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}
	if err := s.moveStatus(ctx, rc, "delete", id, models.StatusInactive); err != nil {
		return outcome{}, err
	}
	return outcome{message: "Student deactivated successfully", id: id}, nil
}

func (s *studentService) changeStatus(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}
	var payload dto.StudentStatusForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}
	if err := s.moveStatus(ctx, rc, "change_status", id, models.Status(payload.Status)); err != nil {
		return outcome{}, err
	}
	return outcome{message: "Student status changed to " + payload.Status, id: id}, nil
}

func (s *studentService) moveStatus(ctx context.Context, rc RequestContext, action string, id uint, target models.Status) error {
	_, err := s.transact(ctx, rc, action, func(tx *repository.Store) (uint, map[string]interface{}, error) {
		student, err := tx.Students.GetByID(ctx, id)
		if err != nil {
			return 0, nil, notFound(err)
		}
		if err := models.StudentLifecycle.Transition(student.Status, target); err != nil {
			return 0, nil, conflict("%s", err.Error())
		}
		if target == models.StatusActive {
			if err := s.checkPlacement(ctx, tx, student.HalqaID, student.CourseID, 0); err != nil {
				return 0, nil, err
			}
		}
		if err := tx.Students.SetStatus(ctx, id, target); err != nil {
			return 0, nil, notFound(err)
		}
		return id, map[string]interface{}{"from": student.Status, "to": target}, nil
	})
	return err
}
