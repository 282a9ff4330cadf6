package engine

import (
	"encoding/json"
	"log/slog"

	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"gorm.io/gorm"
)

// CapabilityChecker answers whether an actor may perform an action on a
// document type. Consulted by every guard before mutation; a refusal is never
// retried.
type CapabilityChecker interface {
	CanPerform(actorID uint, action string, typeDoc string) bool
}

// DBCapabilities resolves capabilities from the role/permission tables. The
// permission name is "<typeDoc>_<action>", e.g. "engagement_valider". Actors
// holding the admin role may do everything.
type DBCapabilities struct {
	DB *gorm.DB
}

func (c *DBCapabilities) CanPerform(actorID uint, action string, typeDoc string) bool {
	var user models.User
	if err := c.DB.Preload("Roles").First(&user, actorID).Error; err != nil {
		return false
	}

	var roleIDs []uint
	for _, role := range user.Roles {
		if role.Name == "admin" {
			return true
		}
		roleIDs = append(roleIDs, role.ID)
	}
	if len(roleIDs) == 0 {
		return false
	}

	required := typeDoc + "_" + action
	var count int64
	c.DB.Table("permissions").
		Joins("join role_permissions on role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id IN ? AND permissions.name = ?", roleIDs, required).
		Count(&count)
	return count > 0
}

// AllowAll grants every capability. Used by tests and maintenance scripts.
type AllowAll struct{}

func (AllowAll) CanPerform(uint, string, string) bool { return true }

// AuditEntry describes one successful transition for the audit sink.
type AuditEntry struct {
	TypeEntite string
	EntiteID   uint
	Action     string
	AuteurID   uint
	Avant      any
	Apres      any
	Metadata   map[string]any
}

// AuditSink records transitions. The engine calls it once per successful
// transition, inside the same transaction, and never depends on its outcome.
type AuditSink interface {
	Record(tx *gorm.DB, entry AuditEntry)
}

// GormAuditSink appends to the journal_audits table. A failed append is
// logged and swallowed: an audit write must not block a financial transition
// (tradeoff documented in DESIGN.md).
type GormAuditSink struct{}

func (GormAuditSink) Record(tx *gorm.DB, entry AuditEntry) {
	row := models.JournalAudit{
		TypeEntite: entry.TypeEntite,
		EntiteID:   entry.EntiteID,
		Action:     entry.Action,
		AuteurID:   entry.AuteurID,
		Avant:      toJSON(entry.Avant),
		Apres:      toJSON(entry.Apres),
		Metadata:   toJSON(entry.Metadata),
	}
	if err := tx.Create(&row).Error; err != nil {
		slog.Error("Failed to append audit record", "entity", entry.TypeEntite, "id", entry.EntiteID, "error", err)
	}
}

func toJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
