package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradielink/tradielink"
	"github.com/tradielink/tradielink/api/middleware"
	"github.com/tradielink/tradielink/config"
)

type Api struct {
	tradielink *tradielink.Tradielink
	router     *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/users", a.CreateUser)
	router.GET("/users/:id", a.GetUser)
	router.GET("/users/:id/balance", a.GetUserBalance)

	router.POST("/projects", a.CreateProject)
	router.GET("/projects/:id", a.GetProject)
	router.GET("/projects", a.GetAllProjects)
	router.POST("/projects/:id/start", a.StartWork)
	router.POST("/projects/:id/complete", a.MarkCompleted)
	router.POST("/projects/:id/confirm-completion", a.ConfirmCompletion)
	router.POST("/projects/:id/dispute", a.DisputeProject)
	router.POST("/projects/:id/resolve-dispute", a.ResolveDispute)
	router.POST("/projects/:id/cancel", a.CancelProject)
	router.POST("/projects/:id/reviews", a.CreateReview)
	router.GET("/projects/:id/quotes", a.GetQuotesByProject)
	router.GET("/projects/:id/escrow", a.GetEscrowByProject)
	router.POST("/projects/:id/payments", a.ProcessPayment)

	router.POST("/quotes", a.CreateQuote)
	router.GET("/quotes/:id", a.GetQuote)
	router.POST("/quotes/:id/negotiate", a.NegotiateQuote)
	router.POST("/quotes/:id/accept", a.AcceptQuote)

	router.POST("/payments/:id/confirm", a.ConfirmPayment)
	router.POST("/payments/webhook/:provider", a.HandleProviderEvent)

	router.GET("/escrows/:id", a.GetEscrow)

	router.POST("/withdrawals", a.RequestWithdrawal)
	router.GET("/withdrawals/:id", a.GetWithdrawal)
	router.GET("/tradies/:id/withdrawals", a.GetWithdrawalsByTradie)
	router.GET("/tradies/:id/withdrawable-balance", a.WithdrawableBalance)
	router.POST("/withdrawals/:id/complete", a.CompleteWithdrawal)
	router.POST("/withdrawals/:id/reject", a.RejectWithdrawal)

	cron := router.Group("/cron", middleware.CronAuthMiddleware())
	cron.GET("/escrow-releases/due", a.DueEscrowReleases)
	cron.POST("/escrow-releases", a.ProcessAutomaticEscrowReleases)

	return a.router
}

func NewAPI(t *tradielink.Tradielink) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{tradielink: t, router: r}
}
