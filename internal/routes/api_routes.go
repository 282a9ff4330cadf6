package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/internal/handlers"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/internal/middleware"
)

// RegisterAPIRoutes wires the authenticated API. Coarse route permissions are
// enforced here; the fine-grained per-action capabilities are re-checked by
// the engine on every mutation.
func RegisterAPIRoutes(rg *gin.RouterGroup) {
	api := rg.Group("/api")

	api.GET("/me", handlers.MeHandler)
	api.GET("/ws/notifications", handlers.NotificationsWSHandler)

	admin := api.Group("/admin")
	admin.Use(middleware.PermissionMiddleware("administration"))
	{
		admin.GET("/users", handlers.ListUsersHandler)
		admin.POST("/users", handlers.CreateUserHandler)
		admin.PUT("/users/:id/roles", handlers.UpdateUserRolesHandler)
		admin.GET("/roles", handlers.ListRolesHandler)
		admin.POST("/roles", handlers.CreateRoleHandler)
		admin.GET("/permissions", handlers.ListPermissionsHandler)
	}

	budget := api.Group("/lignes")
	{
		budget.GET("", handlers.ListLignesHandler)
		budget.GET("/:id", handlers.GetLigneHandler)
		budget.GET("/:id/ajustements", handlers.ListAjustementsHandler)
		budget.GET("/:id/disponible", handlers.GetDisponibleHandler)
		budget.POST("", middleware.PermissionMiddleware("ligne_budgetaire_creer"), handlers.CreateLigneHandler)
		budget.POST("/:id/ajuster", handlers.AdjustDotationHandler)
		budget.POST("/:id/recalculer", handlers.RecomputeLigneHandler)
	}
	api.GET("/execution", handlers.ExecutionReportHandler)
	api.GET("/execution/export", handlers.ExportExecutionHandler)

	dossiers := api.Group("/dossiers")
	{
		dossiers.GET("", handlers.ListDossiersHandler)
		dossiers.GET("/export", handlers.ExportDossiersCSVHandler)
		dossiers.GET("/:id", handlers.GetDossierHandler)
		dossiers.GET("/:id/journal", handlers.DossierJournalHandler)
		dossiers.POST("/:id/bloquer", handlers.BlockDossierHandler)
		dossiers.POST("/:id/debloquer", handlers.UnblockDossierHandler)
	}

	chaine := api.Group("/chaine")
	{
		// Shared transition endpoint for every document type; the action
		// capability is resolved by the engine.
		chaine.POST("/:type/:id/transitions", handlers.TransitionHandler)
		chaine.POST("/:type/:id/pieces", handlers.AttachPieceHandler)
	}

	engagements := api.Group("/engagements")
	{
		engagements.GET("", handlers.ListEngagementsHandler)
		engagements.POST("", handlers.CreateEngagementHandler)
		engagements.POST("/:id/degager", handlers.DegagerHandler)
	}

	api.POST("/liquidations", handlers.CreateLiquidationHandler)

	ordonnancements := api.Group("/ordonnancements")
	{
		ordonnancements.POST("", handlers.CreateOrdonnancementHandler)
		ordonnancements.GET("/:id/export", handlers.ExportOrdonnancementHandler)
		ordonnancements.GET("/:id/reste-a-payer", handlers.ResteAPayerHandler)
	}

	reglements := api.Group("/reglements")
	{
		reglements.GET("", handlers.ListReglementsHandler)
		reglements.POST("", handlers.CreateReglementHandler)
		reglements.POST("/:id/annuler", handlers.CancelReglementHandler)
		reglements.POST("/:id/rejeter", handlers.RejectReglementHandler)
	}

	marches := api.Group("/marches")
	{
		marches.GET("", handlers.ListMarchesHandler)
		marches.GET("/procedure-recommandee", handlers.RecommendedProcedureHandler)
		marches.GET("/:id", handlers.GetMarcheHandler)
		marches.POST("", handlers.CreateMarcheHandler)
		marches.PUT("/:id/procedure", handlers.ChangeProcedureHandler)
		marches.POST("/:id/soumissionnaires", handlers.AddSoumissionnaireHandler)
		marches.POST("/:id/noter", handlers.ScoreSoumissionnaireHandler)
	}
}
