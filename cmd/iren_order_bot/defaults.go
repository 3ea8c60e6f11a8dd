package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.admin_chat_id", int64(0))
	viper.SetDefault("telegram.mode", "poll")
	viper.SetDefault("telegram.webhook.public_url", "")
	viper.SetDefault("telegram.webhook.secret", "")

	// Site the bot links visitors back to.
	viper.SetDefault("site.url", "https://3763024irina.github.io/voyages-de-l-auteur/")

	// HTTP intake
	viper.SetDefault("http.bind", "0.0.0.0")
	viper.SetDefault("http.port", 3000)
	viper.SetDefault("http.body_limit", "200K")
	viper.SetDefault("http.allowed_origins", []string{
		"https://3763024irina.github.io",
		"http://localhost:3000",
		"http://127.0.0.1:3000",
	})
	viper.SetDefault("http.rate.rps", 5.0)
	viper.SetDefault("http.rate.burst", 10)

	// Handoff store
	viper.SetDefault("handoff.ttl", 30*time.Minute)
	viper.SetDefault("handoff.sweep_interval", 60*time.Second)

	// Shutdown
	viper.SetDefault("shutdown.grace", 10*time.Second)

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
}
