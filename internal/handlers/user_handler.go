package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/config"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/internal/middleware"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"golang.org/x/crypto/bcrypt"
)

// UserInput creates or updates an agent account.
type UserInput struct {
	Login    string `json:"login" binding:"required"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleIDs  []uint `json:"roleIds"`
}

func ListUsersHandler(c *gin.Context) {
	var users []models.User
	var totalRows int64
	config.DB.Model(&models.User{}).Count(&totalRows)
	if err := config.DB.Preload("Roles").Order("login asc").Scopes(Paginate(c)).Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de lecture des utilisateurs"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, users, totalRows))
}

func CreateUserHandler(c *gin.Context) {
	var input UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mot de passe obligatoire"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de hachage du mot de passe"})
		return
	}

	user := models.User{
		Login:        input.Login,
		FullName:     input.FullName,
		Email:        input.Email,
		PasswordHash: string(hash),
	}
	if len(input.RoleIDs) > 0 {
		if err := config.DB.Find(&user.Roles, input.RoleIDs).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Roles inconnus"})
			return
		}
	}
	if err := config.DB.Create(&user).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Login ou email deja utilise"})
		return
	}
	c.JSON(http.StatusCreated, user)
}

// UpdateUserRolesHandler replaces the role set of an agent and invalidates
// their cached capabilities.
func UpdateUserRolesHandler(c *gin.Context) {
	var user models.User
	if err := config.DB.First(&user, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Utilisateur introuvable"})
		return
	}
	var input struct {
		RoleIDs []uint `json:"roleIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var roles []models.Role
	if len(input.RoleIDs) > 0 {
		if err := config.DB.Find(&roles, input.RoleIDs).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Roles inconnus"})
			return
		}
	}
	if err := config.DB.Model(&user).Association("Roles").Replace(roles); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de mise a jour des roles"})
		return
	}
	middleware.InvalidateUserCache(user.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Roles mis a jour"})
}

func ListRolesHandler(c *gin.Context) {
	var roles []models.Role
	if err := config.DB.Preload("Permissions").Order("name asc").Find(&roles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de lecture des roles"})
		return
	}
	c.JSON(http.StatusOK, roles)
}

// RoleInput creates a role with an explicit permission set.
type RoleInput struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	PermissionIDs []uint `json:"permissionIds"`
}

func CreateRoleHandler(c *gin.Context) {
	var input RoleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := models.Role{Name: input.Name, Description: input.Description}
	if len(input.PermissionIDs) > 0 {
		if err := config.DB.Find(&role.Permissions, input.PermissionIDs).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Permissions inconnues"})
			return
		}
	}
	if err := config.DB.Create(&role).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Nom de role deja utilise"})
		return
	}
	c.JSON(http.StatusCreated, role)
}

func ListPermissionsHandler(c *gin.Context) {
	var permissions []models.Permission
	if err := config.DB.Order("category asc, name asc").Find(&permissions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de lecture des permissions"})
		return
	}
	c.JSON(http.StatusOK, permissions)
}
