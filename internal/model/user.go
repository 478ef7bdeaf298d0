// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// Role はユーザーの役割を表す。
type Role string

const (
	// RoleStudent は学生ロール。
	RoleStudent Role = "STUDENT"
	// RoleTeacher は教員ロール。
	RoleTeacher Role = "TEACHER"
	// RoleAdmin は管理者ロール。
	RoleAdmin Role = "ADMIN"
)

// DisplayName はロールの表示名を返す。
// 未知のロールはそのまま文字列として返す。
func (r Role) DisplayName() string {
	switch r {
	case RoleStudent:
		return "学生"
	case RoleTeacher:
		return "教員"
	case RoleAdmin:
		return "管理者"
	default:
		return string(r)
	}
}

// UserStatus はユーザーアカウントの状態を表す。
type UserStatus string

const (
	// UserStatusPending は承認待ち状態。
	UserStatusPending UserStatus = "PENDING"
	// UserStatusApproved は承認済み状態。
	UserStatusApproved UserStatus = "APPROVED"
	// UserStatusRejected は承認拒否状態。
	UserStatusRejected UserStatus = "REJECTED"
	// UserStatusDisabled は無効化状態。
	UserStatusDisabled UserStatus = "DISABLED"
)

// User はバックエンドから取得したユーザープロフィールを表す。
// バックエンドは新旧両方のフィールド名（schoolName/college、
// department/major、studentId/studentNumber）を返すことがあるため、
// デコード時に正規化し、以降は正規化後の値のみを保持する。
type User struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	RealName      string     `json:"realName"`
	Role          Role       `json:"role"`
	Status        UserStatus `json:"status"`
	Title         string     `json:"title,omitempty"`
	StudentNumber string     `json:"studentNumber,omitempty"`
	College       string     `json:"college,omitempty"`
	Department    string     `json:"department,omitempty"`
	Major         string     `json:"major,omitempty"`
	Grade         string     `json:"grade,omitempty"`
	ClassName     string     `json:"className,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
}

// UnmarshalJSON は旧フィールド名（schoolName、department、studentId）を
// 正規化しながらデコードする。新フィールドが設定されている場合はそちらを優先する。
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	aux := struct {
		*alias
		SchoolName string `json:"schoolName"`
		StudentID  string `json:"studentId"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if u.College == "" {
		u.College = aux.SchoolName
	}
	if u.StudentNumber == "" {
		u.StudentNumber = aux.StudentID
	}
	if u.Major == "" {
		u.Major = u.Department
	}
	return nil
}

// LoginRequest はログイン要求を表す。
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest はユーザー登録要求を表す。
// 学生はStudentNumber、教員はTeacherNumberを設定する。
type RegisterRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	RealName      string `json:"realName"`
	Role          Role   `json:"role"`
	StudentNumber string `json:"studentId,omitempty"`
	TeacherNumber string `json:"teacherId,omitempty"`
	College       string `json:"college,omitempty"`
	Major         string `json:"major,omitempty"`
	Grade         string `json:"grade,omitempty"`
}

// ChangePasswordRequest はパスワード変更要求を表す。
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
