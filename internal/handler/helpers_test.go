package handler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/service"
)

func TestPageURLKeepsFiltersAndDropsFirstPage(t *testing.T) {
	params := service.Params{"search": "circle", "status_filter": "", "page": "4"}

	require.Equal(t, "/halaqat?search=circle", pageURL("/halaqat", params, 1))
	require.Equal(t, "/halaqat?page=3&search=circle", pageURL("/halaqat", params, 3))
	require.Equal(t, "/users", pageURL("/users", service.Params{}, 1))
}

func TestPaginateWindowsLinksAroundCurrentPage(t *testing.T) {
	view := listView{Page: 9, TotalPages: 20}
	view.paginate("/students", service.Params{"halqa_filter": "2"})

	require.Len(t, view.Links, maxPageLinks)
	require.Equal(t, 6, view.Links[0].Number)
	require.Equal(t, 12, view.Links[len(view.Links)-1].Number)
	require.True(t, view.Links[3].Current)
	require.Equal(t, "/students?halqa_filter=2&page=8", view.PrevURL)
	require.Equal(t, "/students?halqa_filter=2&page=10", view.NextURL)

	single := listView{Page: 1, TotalPages: 1}
	single.paginate("/students", service.Params{})
	require.Len(t, single.Links, 1)
	require.Empty(t, single.PrevURL)
	require.Empty(t, single.NextURL)
}

func TestRosterOnlyUsesVisibleHalaqat(t *testing.T) {
	options := service.FormOptions{
		Halaqat:  []models.Halqa{{ID: 1, Name: "Circle A"}},
		Students: []models.Student{{ID: 10, HalqaID: 1}, {ID: 11, HalqaID: 2}, {ID: 12, HalqaID: 1}},
	}

	halqa, students := roster(options, "1")
	require.Equal(t, "Circle A", halqa.Name)
	require.Len(t, students, 2)

	halqa, students = roster(options, "2")
	require.Zero(t, halqa.ID)
	require.Empty(t, students)

	_, students = roster(options, "abc")
	require.Empty(t, students)
}
