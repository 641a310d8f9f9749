// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"staybook/internal/pkg/logger"
	"staybook/internal/pkg/nacos"
	"staybook/internal/pkg/tracing"
)

// AppCtx 是注册路由时可以使用的公共组件
type AppCtx struct {
	// Ctx 在收到退出信号时被取消
	Ctx    context.Context
	Mux    *http.ServeMux
	Config *Config
	Nacos  *nacos.Client // 未启用 Nacos 时为 nil

	group     *errgroup.Group
	shutdowns []func(context.Context) error
}

// Go 启动一个后台任务，任务返回错误会触发整个服务退出
func (a *AppCtx) Go(fn func(ctx context.Context) error) {
	a.group.Go(func() error { return fn(a.Ctx) })
}

// OnShutdown 注册一个关停时执行的清理函数，按后进先出的顺序执行
func (a *AppCtx) OnShutdown(fn func(ctx context.Context) error) {
	a.shutdowns = append(a.shutdowns, fn)
}

// AppInfo 包含了启动一个服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	// RegisterHandlers 允许每个服务注册自己独特的 HTTP 路由和后台任务
	RegisterHandlers func(appCtx *AppCtx) error
	// Middleware 包在 mux 外层，可选
	Middleware func(http.Handler) http.Handler
}

// Init 读取配置并初始化全局 logger，必须在 StartService 之前调用
func Init(serviceName string) *Config {
	cfg, err := LoadConfig(getEnv("CONFIG_FILE", "configs/config.yaml"))
	if err != nil {
		logger.Init(serviceName, "info", nil)
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	cfg.App.Name = serviceName
	logger.Init(serviceName, cfg.App.LogLevel, nil)
	SetCurrentConfig(cfg)
	return cfg
}

// StartService 封装了通用的启动和优雅关停逻辑，阻塞直到服务退出
func StartService(info AppInfo) error {
	cfg := GetCurrentConfig()
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(sigCtx)
	appCtx := &AppCtx{Ctx: groupCtx, Mux: http.NewServeMux(), Config: cfg, group: group}

	// 1. Tracer
	endpoint := ""
	if cfg.Infra.Jaeger.Enabled {
		endpoint = cfg.Infra.Jaeger.Endpoint
	}
	tp, err := tracing.InitTracerProvider(info.ServiceName, endpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer provider: %w", err)
	}
	appCtx.OnShutdown(tp.Shutdown)

	// 2. 配置中心与服务注册
	if cfg.Infra.Nacos.Enabled {
		if err := setupNacos(appCtx, info.ServiceName); err != nil {
			return err
		}
		cfg = GetCurrentConfig()
		appCtx.Config = cfg
	}

	// 3. 业务路由
	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(appCtx); err != nil {
			runShutdowns(appCtx)
			return fmt.Errorf("register handlers: %w", err)
		}
	}

	var handler http.Handler = appCtx.Mux
	if info.Middleware != nil {
		handler = info.Middleware(handler)
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.Server.Port), Handler: handler}

	group.Go(func() error {
		logger.Info().Msgf("%s listening on %s", info.ServiceName, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", server.Addr, err)
		}
		return nil
	})

	// 4. 优雅关停：先停止接收请求，再按注册的逆序清理
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info().Msgf("Shutting down service %s...", info.ServiceName)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Error shutting down http server")
		}
		runShutdowns(appCtx)
		return nil
	})

	err = group.Wait()
	logger.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
	return err
}

func runShutdowns(appCtx *AppCtx) {
	ctx, cancel := context.WithTimeout(context.Background(), appCtx.Config.Server.ShutdownTimeout)
	defer cancel()
	for i := len(appCtx.shutdowns) - 1; i >= 0; i-- {
		if err := appCtx.shutdowns[i](ctx); err != nil {
			logger.Error().Err(err).Msg("shutdown hook failed")
		}
	}
}

func setupNacos(appCtx *AppCtx, serviceName string) error {
	nc := appCtx.Config.Infra.Nacos
	client, err := nacos.NewNacosClient(nc.ServerAddrs, nc.Namespace, nc.Group)
	if err != nil {
		return fmt.Errorf("failed to initialize nacos client: %w", err)
	}
	appCtx.Nacos = client
	appCtx.OnShutdown(func(context.Context) error {
		client.Close()
		return nil
	})

	// a. 远程配置覆盖本地配置，并监听变更（例如特性开关）
	if nc.DataID != "" {
		if content, err := client.GetConfig(nc.DataID); err != nil {
			logger.Warn().Err(err).Msg("remote config unavailable, using local config")
		} else if content != "" {
			applyRemoteConfig(content)
		}
		if err := client.WatchConfig(nc.DataID, applyRemoteConfig); err != nil {
			logger.Warn().Err(err).Msg("failed to watch remote config")
		}
	}

	// b. 注册服务实例
	ip, err := getOutboundIP()
	if err != nil {
		return fmt.Errorf("failed to get outbound IP address: %w", err)
	}
	port := appCtx.Config.Server.Port
	if err := client.RegisterServiceInstance(serviceName, ip, port); err != nil {
		return err
	}
	appCtx.OnShutdown(func(context.Context) error {
		return client.DeregisterServiceInstance(serviceName, ip, port)
	})
	return nil
}

func applyRemoteConfig(content string) {
	next, err := MergeYAML(GetCurrentConfig(), content)
	if err != nil {
		logger.Error().Err(err).Msg("ignoring invalid remote config")
		return
	}
	SetCurrentConfig(next)
	logger.Info().Msg("remote config applied")
}

// getOutboundIP 通过一次 UDP "连接" 找出对外通信使用的本机地址，不会真正发包
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
