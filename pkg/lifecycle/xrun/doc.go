// Package xrun 基于 errgroup 管理进程内多个长期运行服务的启动与协调关闭。
//
// 任一服务返回错误、收到退出信号或父 ctx 取消时，其余服务都会收到取消。
// 典型用法是把 HTTP 服务、配置监视与周期任务交给同一个 [Run]：
//
//	err := xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger)},
//	    xrun.Named("http", xrun.HTTPServer(srv, 10*time.Second)),
//	    xrun.Named("config-watch", watcher.Run),
//	    xrun.Named("stats", xrun.Ticker(30*time.Second, false, logStats)),
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//	    // 正常的信号退出
//	}
package xrun
