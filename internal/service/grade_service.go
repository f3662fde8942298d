package service

import (
	"context"
	"math"
	"net/url"
	"strconv"

	"github.com/noah-isme/halqat/internal/dto"
	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/repository"
)

type gradeService struct {
	mutator
}

// NewGradeService constructs the grade mutation handler.
func NewGradeService(deps MutationDeps) MutationHandler {
	return &gradeService{mutator: newMutator(deps, "grade", models.PermManageGrades, KindGrades)}
}

func (s *gradeService) Handle(ctx context.Context, rc RequestContext, action string, form url.Values) MutationResult {
	return s.dispatch(ctx, rc, action, form, map[string]actionFunc{
		"add":         s.add,
		"edit":        s.edit,
		"delete":      s.deactivate,
		"bulk_grades": s.bulk,
	})
}

func maxGrade(value *float64) float64 {
	if value == nil {
		return models.DefaultMaxGrade
	}
	return *value
}

func checkGradeValue(field string, value, max float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 || value > max {
		return invalid(field, "Grade value must be between 0 and %s", strconv.FormatFloat(max, 'f', -1, 64))
	}
	return nil
}

// gradedStudent loads the student, enforces halqa access and returns it for the halqa snapshot.
func gradedStudent(ctx context.Context, tx *repository.Store, rc RequestContext, studentID uint) (models.Student, error) {
	student, err := tx.Students.GetByID(ctx, studentID)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return models.Student{}, invalid("student_id", "The selected student does not exist")
		}
		return models.Student{}, err
	}
	if _, err := halqaAccess(ctx, tx, rc, student.HalqaID); err != nil {
		return models.Student{}, err
	}
	if student.Status != models.StatusActive {
		return models.Student{}, invalid("student_id", "%s is not an active student", student.FullName)
	}
	return student, nil
}

func (s *gradeService) add(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	var payload dto.GradeForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}
	max := maxGrade(payload.MaxValue)
	if err := checkGradeValue("grade_value", *payload.Value, max); err != nil {
		return outcome{}, err
	}
	gradedOn, err := parseDate("graded_on", payload.GradedOn)
	if err != nil {
		return outcome{}, err
	}

	id, err := s.transact(ctx, rc, "add", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		student, err := gradedStudent(ctx, tx, rc, payload.StudentID)
		if err != nil {
			return 0, nil, err
		}
		grade := models.Grade{
			StudentID:   student.ID,
			HalqaID:     student.HalqaID,
			GradeType:   payload.GradeType,
			Value:       *payload.Value,
			MaxValue:    max,
			GradedOn:    gradedOn,
			Description: payload.Description,
			Notes:       payload.Notes,
			RecordedBy:  rc.User.ID,
			Status:      models.StatusActive,
		}
		if err := tx.Grades.Create(ctx, &grade); err != nil {
			return 0, nil, err
		}
		return grade.ID, map[string]interface{}{
			"student_id": grade.StudentID,
			"grade_type": grade.GradeType,
			"value":      grade.Value,
			"max_value":  grade.MaxValue,
		}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Grade recorded successfully", id: id}, nil
}

func (s *gradeService) edit(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}
	var payload dto.GradeForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}
	max := maxGrade(payload.MaxValue)
	if err := checkGradeValue("grade_value", *payload.Value, max); err != nil {
		return outcome{}, err
	}
	gradedOn, err := parseDate("graded_on", payload.GradedOn)
	if err != nil {
		return outcome{}, err
	}

	_, err = s.transact(ctx, rc, "edit", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		existing, err := tx.Grades.GetByID(ctx, id)
		if err != nil {
			return 0, nil, notFound(err)
		}
		if _, err := halqaAccess(ctx, tx, rc, existing.HalqaID); err != nil {
			return 0, nil, err
		}

		halqaID := existing.HalqaID
		if payload.StudentID != existing.StudentID {
			student, err := gradedStudent(ctx, tx, rc, payload.StudentID)
			if err != nil {
				return 0, nil, err
			}
			halqaID = student.HalqaID
		}

		updates := map[string]interface{}{
			"student_id":  payload.StudentID,
			"halqa_id":    halqaID,
			"grade_type":  payload.GradeType,
			"value":       *payload.Value,
			"max_value":   max,
			"graded_on":   gradedOn,
			"description": payload.Description,
			"notes":       payload.Notes,
		}
		if err := tx.Grades.Update(ctx, id, updates); err != nil {
			return 0, nil, notFound(err)
		}
		return id, map[string]interface{}{"value": *payload.Value, "max_value": max}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Grade updated successfully", id: id}, nil
}

func (s *gradeService) deactivate(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}

	_, err = s.transact(ctx, rc, "delete", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		grade, err := tx.Grades.GetByID(ctx, id)
		if err != nil {
			return 0, nil, notFound(err)
		}
		if _, err := halqaAccess(ctx, tx, rc, grade.HalqaID); err != nil {
			return 0, nil, err
		}
		if err := models.GradeLifecycle.Transition(grade.Status, models.StatusInactive); err != nil {
			return 0, nil, conflict("%s", err.Error())
		}
		if err := tx.Grades.SetStatus(ctx, id, models.StatusInactive); err != nil {
			return 0, nil, notFound(err)
		}
		return id, map[string]interface{}{"status": models.StatusInactive}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Grade removed successfully", id: id}, nil
}

// bulk records one grade per submitted student. Rows are written one by one inside the
// transaction; the first invalid row aborts and rolls back the whole sheet.
func (s *gradeService) bulk(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	var payload dto.GradeBulkForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}
	max := maxGrade(payload.MaxValue)
	gradedOn, err := parseDate("graded_on", payload.GradedOn)
	if err != nil {
		return outcome{}, err
	}
	values, err := indexedValues(form, "grades")
	if err != nil {
		return outcome{}, err
	}
	if len(values) == 0 {
		return outcome{}, invalid("grades", "Enter a grade for at least one student")
	}
	notes, err := indexedValues(form, "notes")
	if err != nil {
		return outcome{}, err
	}
	ids := sortedIDs(values)

	_, err = s.transact(ctx, rc, "bulk_grades", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		halqa, err := halqaAccess(ctx, tx, rc, payload.HalqaID)
		if err != nil {
			return 0, nil, err
		}
		students, err := tx.Students.FindByIDs(ctx, ids)
		if err != nil {
			return 0, nil, err
		}
		if err := ensureEnrolled(students, ids, halqa); err != nil {
			return 0, nil, err
		}

		for _, studentID := range ids {
			value, err := strconv.ParseFloat(values[studentID], 64)
			if err != nil {
				return 0, nil, invalid("grades", "Grade for student #%d is not a number", studentID)
			}
			if err := checkGradeValue("grades", value, max); err != nil {
				return 0, nil, err
			}
			grade := models.Grade{
				StudentID:   studentID,
				HalqaID:     halqa.ID,
				GradeType:   payload.GradeType,
				Value:       value,
				MaxValue:    max,
				GradedOn:    gradedOn,
				Description: payload.Description,
				Notes:       cleanText(notes[studentID]),
				RecordedBy:  rc.User.ID,
				Status:      models.StatusActive,
			}
			if err := tx.Grades.Create(ctx, &grade); err != nil {
				return 0, nil, err
			}
		}
		return halqa.ID, map[string]interface{}{
			"grade_type": payload.GradeType,
			"graded_on":  gradedOn.Format(listquery.DateLayout),
			"records":    len(ids),
		}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Grades recorded for " + pluralStudents(len(ids)), id: payload.HalqaID}, nil
}
