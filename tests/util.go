// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Mabu007/czane-beauty-academy/core/course"
	"github.com/Mabu007/czane-beauty-academy/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		DisplayName: name,
		Email:       email,
		Role:        role,
		IsActive:    isActive,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateCourse stores a course with one module holding the given lessons.
func CreateCourse(t *testing.T, repo course.Repository, title string, status course.Status, price string, lessons ...course.Lesson) course.Course {
	t.Helper()
	c := course.Course{
		Title:     title,
		Price:     decimal.RequireFromString(price),
		Level:     course.LevelBeginner,
		Status:    status,
		CreatedAt: time.Now().UTC(),
		Modules:   []course.Module{},
	}
	if len(lessons) > 0 {
		c.Modules = append(c.Modules, course.Module{ID: "m1", Title: "Module 1", Lessons: lessons})
	}
	c, err := repo.CreateCourse(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}
