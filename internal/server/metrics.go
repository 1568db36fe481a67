package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activitiesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usageview_activities_recorded_total",
		Help: "Completed window sessions accepted by POST /activity/.",
	})

	chatbotQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usageview_chatbot_queries_total",
		Help: "Chatbot queries answered, labeled by resolved intent.",
	}, []string{"intent"})
)
