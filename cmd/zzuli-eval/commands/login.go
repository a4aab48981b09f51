package commands

import (
	"context"
	"errors"
	"fmt"
	"zzuli-evaluation/lib/evalstore"
	"zzuli-evaluation/lib/platforms/zzuli/cas"
	"zzuli-evaluation/lib/platforms/zzuli/qrlogin"
	"zzuli-evaluation/lib/restyutil"
	"zzuli-evaluation/lib/telemetry"
	"zzuli-evaluation/services/autoeval"
)

func statusMessage(s qrlogin.Status) string {
	switch s {
	case qrlogin.StatusAwaitingScan:
		return "等待扫码中..."
	case qrlogin.StatusScanned:
		return "已扫码，请在手机上确认登录"
	case qrlogin.StatusConfirmed:
		return "已确认"
	case qrlogin.StatusExpired:
		return "二维码已过期"
	case qrlogin.StatusError:
		return "扫码登录失败"
	}
	return s.String()
}

// newRunner builds a runner out of the loaded config, ledger may be nil in
// which case nothing is recorded.
func newRunner(u *ui, ledger *evalstore.Store) (*autoeval.Runner, error) {
	opts := autoeval.Options{
		Endpoints:  config.Endpoints,
		Evaluation: config.evaluation(),
		Delay:      config.delay(),
		QRTimeout:  config.qrTimeout(),
		OnQRStatus: func(s qrlogin.Status) {
			if s == qrlogin.StatusAwaitingScan || s == qrlogin.StatusScanned {
				u.Info(statusMessage(s))
			}
		},
		Tel: telemetry.NewSlogAPI(),
	}
	if ledger != nil {
		opts.Ledger = *ledger
	}
	if config.DumpHttp != "" {
		dump, err := restyutil.NewFilesystemOutput(config.DumpHttp)
		if err != nil {
			return nil, fmt.Errorf("http dump: %w", err)
		}
		opts.Dump = dump
	}
	return autoeval.NewRunner(opts)
}

func openLedger() (*evalstore.Store, error) {
	store, err := evalstore.Open(config.Ledger)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", config.Ledger, err)
	}
	return &store, nil
}

// describeLoginError turns a failed handshake into a message for the user.
func describeLoginError(err error) string {
	var step *cas.StepError
	switch {
	case errors.Is(err, cas.ErrCredentialRejected) && errors.As(err, &step):
		return step.Reason
	case errors.Is(err, cas.ErrTicketUnavailable):
		return "无法获取登录凭据，统一认证服务可能已变更"
	case errors.Is(err, cas.ErrSessionInvalidated):
		return "教务系统拒绝了登录凭证，请稍后重试"
	}
	return err.Error()
}

func loginPassword(ctx context.Context, u *ui, runner *autoeval.Runner) error {
	name := config.Username
	if name == "" {
		name = u.Prompt("学号", "")
	}
	password := config.Password
	if password == "" {
		var err error
		password, err = u.PromptSecret("密码")
		if err != nil {
			return err
		}
	}

	err := u.Spin("正在登录...", func() error {
		return runner.LoginPassword(ctx, name, password)
	})
	if err != nil {
		return fmt.Errorf("登录失败: %s: %w", describeLoginError(err), err)
	}
	return nil
}

func loginQR(ctx context.Context, u *ui, runner *autoeval.Runner) error {
	u.Section("扫码登录")

	var id string
	err := u.Spin("正在生成二维码...", func() error {
		var err error
		id, err = runner.StartQR(ctx)
		return err
	})
	if err != nil {
		return err
	}

	u.Info("请使用「i轻工大」APP 扫描二维码，或在浏览器打开下方链接生成二维码：")
	fmt.Fprintf(u.out, "   %s\n", u.Dim(qrlogin.QRImageURL(id)))
	u.Info("或在手机上直接访问：")
	fmt.Fprintf(u.out, "   %s\n", u.Dim(qrlogin.ScanURL(id)))

	result, err := runner.LoginQR(ctx, id)
	if err != nil {
		if result.Status == qrlogin.StatusConfirmed {
			return fmt.Errorf("登录失败: %s: %w", describeLoginError(err), err)
		}
		return fmt.Errorf("%s: %w", statusMessage(result.Status), err)
	}
	return nil
}

// login logs in with the credential source picked on the command line, a
// failed QR login falls back to the password when the user agrees to.
func login(ctx context.Context, u *ui, runner *autoeval.Runner) error {
	if !*useQR {
		err := loginPassword(ctx, u, runner)
		if err != nil {
			return err
		}
		u.Success("登录成功")
		return nil
	}

	err := loginQR(ctx, u, runner)
	if err != nil {
		if ctx.Err() != nil || !u.Interactive() {
			return err
		}
		u.Warning(err.Error())
		if !u.Confirm("是否切换到账号密码登录？") {
			return err
		}
		err = loginPassword(ctx, u, runner)
		if err != nil {
			return err
		}
	}
	u.Success("登录成功")
	return nil
}
