package app

import (
	"time"

	"github.com/tradeup/creditengine/internal/app/api/server"
	"github.com/tradeup/creditengine/internal/app/service/distribution"
	"github.com/tradeup/creditengine/internal/app/service/ledger"
	"github.com/tradeup/creditengine/internal/app/service/member"
	"github.com/tradeup/creditengine/internal/app/service/payout"
	"github.com/tradeup/creditengine/internal/app/service/promotion"
	"github.com/tradeup/creditengine/internal/app/service/sink"
	"github.com/tradeup/creditengine/internal/app/service/tradein"
	"github.com/tradeup/creditengine/internal/platform/db"
	"github.com/tradeup/creditengine/internal/platform/task"
	"github.com/tradeup/creditengine/pkg/config"
	"github.com/tradeup/creditengine/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	task.Module,
	server.Module,
	sink.Module,
	payout.Module,
	promotion.Module,
	ledger.Module,
	member.Module,
	tradein.Module,
	distribution.Module,
)
