package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"AgentLink-Chain/internal/agent"
	"AgentLink-Chain/internal/archive"
	"AgentLink-Chain/internal/behaviors"
	"AgentLink-Chain/internal/bus"
	"AgentLink-Chain/internal/config"
	"AgentLink-Chain/internal/handlers"
	"AgentLink-Chain/internal/web3"
	"AgentLink-Chain/internal/web3/provider"
	"AgentLink-Chain/pkg/logger"
)

// main 是 AgentLink 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("agentlinkd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("AGENTLINK_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "agentlink.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logger.Level,
		Format:      cfg.Logger.Format,
		OutputPaths: cfg.Logger.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logger.Audit.Enabled,
			Path:       cfg.Logger.Audit.Path,
			MaxSizeMB:  cfg.Logger.Audit.MaxSizeMB,
			MaxBackups: cfg.Logger.Audit.MaxBackups,
			MaxAgeDays: cfg.Logger.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()

	archiveStore, err := createArchiveStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := archiveStore.Close(); err != nil {
			logger.L().Warn("关闭归档存储失败", slog.Any("error", err))
		}
	}()

	inboxFirst, err := createBus(cfg, cfg.Agents.First.Name)
	if err != nil {
		return err
	}
	defer inboxFirst.Close()

	inboxSecond, err := createBus(cfg, cfg.Agents.Second.Name)
	if err != nil {
		return err
	}
	defer inboxSecond.Close()

	var tokenClient web3.TokenClient
	var account common.Address
	if cfg.Web3.Enabled {
		registry, err := provider.NewRegistry(ctx, cfg.Web3)
		if err != nil {
			return err
		}
		defer registry.Close()

		tokenClient, err = registry.DefaultClient()
		if err != nil {
			return err
		}
		if !common.IsHexAddress(cfg.Web3.AccountAddress) {
			return fmt.Errorf("无效的账户地址: %s", cfg.Web3.AccountAddress)
		}
		account = common.HexToAddress(cfg.Web3.AccountAddress)

		snapshot, err := tokenClient.FetchChainSnapshot(ctx)
		if err != nil {
			logger.L().Warn("获取链状态失败", slog.Any("error", err))
		} else {
			logger.L().Info("链连接就绪",
				slog.String("chain_id", snapshot.ChainID),
				slog.String("block_number", snapshot.BlockNumber),
			)
		}
	}

	first, err := buildAgent(cfg, cfg.Agents.First.Name, inboxFirst, archiveStore, tokenClient, account)
	if err != nil {
		return err
	}
	second, err := buildAgent(cfg, cfg.Agents.Second.Name, inboxSecond, archiveStore, tokenClient, account)
	if err != nil {
		return err
	}

	// 互相接线：first 的发件箱指向 second 的收件箱，反之亦然，
	// 由此形成两个智能体之间的对话回路。
	if err := agent.Connect(first, second); err != nil {
		return err
	}

	logger.Audit().Info("智能体守护进程启动",
		slog.String("first", first.Name()),
		slog.String("second", second.Name()),
		slog.String("bus_driver", cfg.Bus.Driver),
		slog.Bool("web3", cfg.Web3.Enabled),
	)

	var wg sync.WaitGroup
	for _, ag := range []*agent.Agent{first, second} {
		wg.Add(1)
		go func(ag *agent.Agent) {
			defer wg.Done()
			if err := ag.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Error("智能体异常退出",
					slog.String("agent", ag.Name()),
					slog.Any("error", err),
				)
			}
		}(ag)
	}

	<-ctx.Done()
	first.Stop()
	second.Stop()
	wg.Wait()

	logger.Audit().Info("智能体守护进程退出")
	return nil
}

// buildAgent 按配置组装一个智能体：随机消息行为和问候处理器始终注册，
// 链上行为只在启用 web3 时注册。
func buildAgent(cfg *config.Config, name string, inbox bus.Bus, store archive.Store, tokenClient web3.TokenClient, account common.Address) (*agent.Agent, error) {
	ag := agent.New(name,
		agent.WithInbox(inbox),
		agent.WithArchive(store),
	)

	random, err := behaviors.NewRandomWords(
		time.Duration(cfg.Agents.Random.IntervalSeconds)*time.Second,
		cfg.Agents.Random.Words,
	)
	if err != nil {
		return nil, err
	}
	if err := ag.RegisterBehavior(random); err != nil {
		return nil, err
	}
	if err := ag.RegisterHandler(handlers.NewHello()); err != nil {
		return nil, err
	}

	if tokenClient != nil {
		balance, err := behaviors.NewTokenBalance(tokenClient, account,
			time.Duration(cfg.Agents.Balance.IntervalSeconds)*time.Second)
		if err != nil {
			return nil, err
		}
		if err := ag.RegisterBehavior(balance); err != nil {
			return nil, err
		}

		if !common.IsHexAddress(cfg.Agents.Transfer.DefaultTarget) {
			return nil, fmt.Errorf("无效的默认转账地址: %s", cfg.Agents.Transfer.DefaultTarget)
		}
		transfer, err := handlers.NewTokenTransfer(tokenClient, account,
			common.HexToAddress(cfg.Agents.Transfer.DefaultTarget))
		if err != nil {
			return nil, err
		}
		if err := ag.RegisterHandler(transfer); err != nil {
			return nil, err
		}
	}

	return ag, nil
}

// createBus 根据驱动配置为指定智能体创建收件箱总线。
// 内存驱动覆盖单进程部署，redis 与 rabbitmq 用于跨进程部署。
func createBus(cfg *config.Config, agentName string) (bus.Bus, error) {
	switch cfg.Bus.Driver {
	case "", "memory":
		return bus.NewMemoryBus(), nil
	case "redis":
		return bus.NewRedisBus(bus.RedisBusConfig{
			Address:   cfg.Bus.Redis.Address,
			Password:  cfg.Bus.Redis.Password,
			DB:        cfg.Bus.Redis.DB,
			Key:       cfg.Bus.Redis.KeyPrefix + ":" + agentName,
			BlockWait: time.Duration(cfg.Bus.Redis.BlockWaitSeconds) * time.Second,
		})
	case "rabbitmq":
		return bus.NewRabbitMQBus(bus.RabbitMQBusConfig{
			URL:        cfg.Bus.RabbitMQ.URL,
			Queue:      cfg.Bus.RabbitMQ.QueuePrefix + "." + agentName,
			Prefetch:   cfg.Bus.RabbitMQ.Prefetch,
			Durable:    cfg.Bus.RabbitMQ.Durable,
			AutoDelete: cfg.Bus.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的总线驱动: %s", cfg.Bus.Driver)
	}
}

// createArchiveStore 根据驱动配置创建会话归档存储。
func createArchiveStore(cfg *config.Config) (archive.Store, error) {
	switch cfg.Archive.Driver {
	case "", "memory":
		return archive.NewMemoryStore(cfg.Archive.MaxRecords), nil
	case "mysql":
		return archive.NewMySQLStore(cfg.Archive.DSN)
	default:
		return nil, fmt.Errorf("未知的归档驱动: %s", cfg.Archive.Driver)
	}
}
