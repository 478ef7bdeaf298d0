package model

import "time"

// CompetitionStatus は競技会の状態を表す。
type CompetitionStatus string

const (
	// CompetitionStatusPending は承認待ち状態。
	CompetitionStatusPending CompetitionStatus = "PENDING"
	// CompetitionStatusApproved は承認済み（公開前）状態。
	CompetitionStatusApproved CompetitionStatus = "APPROVED"
	// CompetitionStatusRejected は承認拒否状態。
	CompetitionStatusRejected CompetitionStatus = "REJECTED"
	// CompetitionStatusOngoing は開催中状態。
	CompetitionStatusOngoing CompetitionStatus = "ONGOING"
	// CompetitionStatusFinished は終了状態。
	CompetitionStatusFinished CompetitionStatus = "FINISHED"
)

// Competition は競技会を表す。
type Competition struct {
	ID                   int64             `json:"id"`
	Name                 string            `json:"name"`
	Description          string            `json:"description"`
	Status               CompetitionStatus `json:"status"`
	Category             string            `json:"category"`
	CategoryID           int64             `json:"categoryId,omitempty"`
	IsTeamBased          bool              `json:"isTeamBased"`
	MaxTeamSize          int               `json:"maxTeamSize,omitempty"`
	MaxParticipants      int               `json:"maxParticipants,omitempty"`
	StartTime            *time.Time        `json:"startTime,omitempty"`
	EndTime              *time.Time        `json:"endTime,omitempty"`
	RegistrationDeadline *time.Time        `json:"registrationDeadline,omitempty"`
	CreatedBy            int64             `json:"createdBy,omitempty"`
	CreatorName          string            `json:"creatorName,omitempty"`
	CreatedAt            *time.Time        `json:"createdAt,omitempty"`
}

// CompetitionStats は競技会の集計情報を表す。
type CompetitionStats struct {
	Total             int64 `json:"total"`
	Pending           int64 `json:"pending"`
	Ongoing           int64 `json:"ongoing"`
	Finished          int64 `json:"finished"`
	TotalParticipants int64 `json:"totalParticipants"`
}

// TeamMember はチームメンバーを表す。
type TeamMember struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	RealName string `json:"realName"`
	IsLeader bool   `json:"isLeader"`
	JoinedAt string `json:"joinedAt,omitempty"`
}

// Team はチームを表す。
type Team struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	CompetitionID int64        `json:"competitionId"`
	LeaderID      int64        `json:"leaderId"`
	LeaderName    string       `json:"leaderName,omitempty"`
	InviteCode    string       `json:"inviteCode,omitempty"`
	MaxMembers    int          `json:"maxMembers,omitempty"`
	MemberCount   int          `json:"memberCount,omitempty"`
	Members       []TeamMember `json:"members,omitempty"`
	CreatedAt     *time.Time   `json:"createdAt,omitempty"`
}

// TeamStats はチームの集計情報を表す。
type TeamStats struct {
	TotalTeams   int64   `json:"totalTeams"`
	TotalMembers int64   `json:"totalMembers"`
	AverageSize  float64 `json:"averageSize"`
}

// RegistrationStatus は参加登録の状態を表す。
type RegistrationStatus string

const (
	// RegistrationStatusPending は承認待ち状態。
	RegistrationStatusPending RegistrationStatus = "PENDING"
	// RegistrationStatusApproved は承認済み状態。
	RegistrationStatusApproved RegistrationStatus = "APPROVED"
	// RegistrationStatusRejected は承認拒否状態。
	RegistrationStatusRejected RegistrationStatus = "REJECTED"
)

// Registration は競技会への参加登録を表す。
type Registration struct {
	ID              int64              `json:"id"`
	CompetitionID   int64              `json:"competitionId"`
	CompetitionName string             `json:"competitionName,omitempty"`
	UserID          int64              `json:"userId,omitempty"`
	Username        string             `json:"username,omitempty"`
	TeamID          int64              `json:"teamId,omitempty"`
	TeamName        string             `json:"teamName,omitempty"`
	Status          RegistrationStatus `json:"status"`
	Reason          string             `json:"reason,omitempty"`
	CreatedAt       *time.Time         `json:"createdAt,omitempty"`
}

// ScoreStatus は成績の状態を表す。
type ScoreStatus string

const (
	// ScoreStatusPending は採点待ち状態。
	ScoreStatusPending ScoreStatus = "PENDING"
	// ScoreStatusGraded は採点済み（未公開）状態。
	ScoreStatusGraded ScoreStatus = "GRADED"
	// ScoreStatusPublished は公開済み状態。
	ScoreStatusPublished ScoreStatus = "PUBLISHED"
)

// Score は競技会の成績を表す。
type Score struct {
	ID              int64       `json:"id"`
	CompetitionID   int64       `json:"competitionId"`
	CompetitionName string      `json:"competitionName,omitempty"`
	UserID          int64       `json:"userId,omitempty"`
	Username        string      `json:"username,omitempty"`
	TeamID          int64       `json:"teamId,omitempty"`
	TeamName        string      `json:"teamName,omitempty"`
	Value           float64     `json:"score"`
	Rank            int         `json:"rank,omitempty"`
	Status          ScoreStatus `json:"status"`
	GradedBy        int64       `json:"gradedBy,omitempty"`
	GraderName      string      `json:"graderName,omitempty"`
	Comment         string      `json:"comment,omitempty"`
	GradedAt        *time.Time  `json:"gradedAt,omitempty"`
}

// RankingEntry は競技会ランキングの1行を表す。
type RankingEntry struct {
	Rank     int     `json:"rank"`
	UserID   int64   `json:"userId,omitempty"`
	Username string  `json:"username,omitempty"`
	TeamID   int64   `json:"teamId,omitempty"`
	TeamName string  `json:"teamName,omitempty"`
	Score    float64 `json:"score"`
}

// Category は競技会カテゴリを表す。
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Status はACTIVEまたはINACTIVE。
	Status    string     `json:"status"`
	SortOrder int        `json:"sortOrder,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// UserStats は管理画面のユーザー集計情報を表す。
type UserStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Disabled int64 `json:"disabled"`
	Students int64 `json:"students"`
	Teachers int64 `json:"teachers"`
}
