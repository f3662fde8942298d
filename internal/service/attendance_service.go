package service

import (
	"context"
	"net/url"
	"strconv"

	"github.com/noah-isme/halqat/internal/dto"
	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/repository"
)

type attendanceService struct {
	mutator
}

// NewAttendanceService constructs the attendance mutation handler.
func NewAttendanceService(deps MutationDeps) MutationHandler {
	return &attendanceService{mutator: newMutator(deps, "attendance", models.PermManageAttendance, KindAttendance)}
}

func (s *attendanceService) Handle(ctx context.Context, rc RequestContext, action string, form url.Values) MutationResult {
	return s.dispatch(ctx, rc, action, form, map[string]actionFunc{
		"bulk_attendance": s.bulk,
		"update_status":   s.updateStatus,
	})
}

// bulk replaces every record of the halqa and day with the submitted sheet. Students left out
// of the sheet lose their record for that day.
func (s *attendanceService) bulk(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	var payload dto.AttendanceBulkForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}
	day, err := parseDate("attendance_date", payload.AttendanceDate)
	if err != nil {
		return outcome{}, err
	}
	if day.After(s.today()) {
		return outcome{}, invalid("attendance_date", "Attendance date cannot be in the future")
	}

	statuses, err := indexedValues(form, "attendance")
	if err != nil {
		return outcome{}, err
	}
	if len(statuses) == 0 {
		return outcome{}, invalid("attendance", "Mark attendance for at least one student")
	}
	notes, err := indexedValues(form, "notes")
	if err != nil {
		return outcome{}, err
	}

	ids := sortedIDs(statuses)
	records := make([]models.Attendance, 0, len(ids))
	tally := map[string]int{}
	for _, studentID := range ids {
		status := models.AttendanceStatus(statuses[studentID])
		if !status.Valid() {
			return outcome{}, invalid("attendance", "Attendance status %q is not recognised", statuses[studentID])
		}
		tally[string(status)]++
		records = append(records, models.Attendance{
			StudentID:  studentID,
			HalqaID:    payload.HalqaID,
			AttendedOn: day,
			Status:     status,
			Notes:      cleanText(notes[studentID]),
			RecordedBy: rc.User.ID,
		})
	}

	_, err = s.transact(ctx, rc, "bulk_attendance", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		halqa, err := halqaAccess(ctx, tx, rc, payload.HalqaID)
		if err != nil {
			return 0, nil, err
		}
		if halqa.Status != models.StatusActive {
			return 0, nil, conflict("Halqa %q is not active", halqa.Name)
		}
		students, err := tx.Students.FindByIDs(ctx, ids)
		if err != nil {
			return 0, nil, err
		}
		if err := ensureEnrolled(students, ids, halqa); err != nil {
			return 0, nil, err
		}
		if err := tx.Attendance.ReplaceDay(ctx, halqa.ID, day, records); err != nil {
			return 0, nil, err
		}
		return halqa.ID, map[string]interface{}{
			"date":    day.Format(listquery.DateLayout),
			"records": len(records),
			"present": tally[string(models.AttendancePresent)],
			"absent":  tally[string(models.AttendanceAbsent)],
			"late":    tally[string(models.AttendanceLate)],
		}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		message: "Attendance saved for " + pluralStudents(len(records)) + " on " + day.Format(listquery.DateLayout),
		id:      payload.HalqaID,
	}, nil
}

func (s *attendanceService) updateStatus(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}
	var payload dto.AttendanceStatusForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}

	_, err = s.transact(ctx, rc, "update_status", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		record, err := tx.Attendance.GetByID(ctx, id)
		if err != nil {
			return 0, nil, notFound(err)
		}
		if _, err := halqaAccess(ctx, tx, rc, record.HalqaID); err != nil {
			return 0, nil, err
		}
		status := models.AttendanceStatus(payload.Status)
		if err := tx.Attendance.UpdateStatus(ctx, id, status, payload.Notes); err != nil {
			return 0, nil, notFound(err)
		}
		return id, map[string]interface{}{"from": record.Status, "to": status}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Attendance updated successfully", id: id}, nil
}

// ensureEnrolled checks every submitted student is an active member of halqa.
func ensureEnrolled(students []models.Student, ids []uint, halqa models.Halqa) error {
	byID := make(map[uint]models.Student, len(students))
	for _, student := range students {
		byID[student.ID] = student
	}
	for _, id := range ids {
		student, ok := byID[id]
		if !ok {
			return invalid("student_id", "Student #%d does not exist", id)
		}
		if student.HalqaID != halqa.ID || student.Status != models.StatusActive {
			return invalid("student_id", "%s is not an active student of halqa %q", student.FullName, halqa.Name)
		}
	}
	return nil
}

func pluralStudents(n int) string {
	if n == 1 {
		return "1 student"
	}
	return strconv.Itoa(n) + " students"
}
