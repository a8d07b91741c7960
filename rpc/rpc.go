package rpc

import (
	"context"
	"net"
	"net/rpc"

	fcb "fcb-go"
	"fcb-go/data"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FCBService 通过 net/rpc 暴露环形缓冲区，服务名为 FCB
type FCBService struct {
	fcb *fcb.FCB
	log logrus.FieldLogger
}

type AppendArgs struct {
	Entries [][]byte
}

type AppendReply struct {
	Locations []data.EntryLocation
}

type WalkArgs struct {
	Sector int // fcb.Oldest 表示整个缓冲区
	Limit  int // 0 表示不限制
}

type Entry struct {
	Location data.EntryLocation
	Payload  []byte
}

type AreaInfoReply struct {
	Count int
	Bytes int
}

// Append 依次追加并封存每个条目
func (s *FCBService) Append(args AppendArgs, reply *AppendReply) error {
	for _, p := range args.Entries {
		loc, err := s.fcb.Append(len(p))
		if err != nil {
			return err
		}
		if err := s.fcb.Write(loc, 0, p); err != nil {
			return err
		}
		if err := s.fcb.Finish(loc); err != nil {
			return err
		}
		reply.Locations = append(reply.Locations, loc)
	}
	return nil
}

// Walk 返回扇区（或整个缓冲区）中的条目
func (s *FCBService) Walk(args WalkArgs, reply *[]Entry) error {
	var readErr error
	err := s.fcb.Walk(args.Sector, func(loc data.EntryLocation) bool {
		buf, err := s.fcb.ReadEntry(loc)
		if err != nil {
			readErr = err
			return false
		}
		*reply = append(*reply, Entry{Location: loc, Payload: buf})
		return args.Limit <= 0 || len(*reply) < args.Limit
	})
	if err != nil {
		return err
	}
	return readErr
}

// LastN 返回最新的 n 个条目，从旧到新
func (s *FCBService) LastN(n int, reply *[]Entry) error {
	loc, err := s.fcb.OffsetLastN(n)
	if errors.Is(err, fcb.ErrNoEntry) {
		return nil
	}
	if err != nil {
		return err
	}
	for {
		buf, err := s.fcb.ReadEntry(loc)
		if err != nil {
			return err
		}
		*reply = append(*reply, Entry{Location: loc, Payload: buf})
		if loc, err = s.fcb.GetNext(&loc); err != nil {
			if errors.Is(err, fcb.ErrNoEntry) {
				return nil
			}
			return err
		}
	}
}

func (s *FCBService) Rotate(_ struct{}, reply *string) error {
	if err := s.fcb.Rotate(); err != nil {
		return err
	}
	s.log.Info("rotated over rpc")
	*reply = "OK"
	return nil
}

func (s *FCBService) Clear(_ struct{}, reply *string) error {
	if err := s.fcb.Clear(); err != nil {
		return err
	}
	s.log.Info("cleared over rpc")
	*reply = "OK"
	return nil
}

func (s *FCBService) AreaInfo(sector int, reply *AreaInfoReply) error {
	count, bytes, err := s.fcb.AreaInfo(sector)
	if err != nil {
		return err
	}
	*reply = AreaInfoReply{Count: count, Bytes: bytes}
	return nil
}

func (s *FCBService) State(_ struct{}, reply *fcb.State) error {
	*reply = s.fcb.State()
	return nil
}

// Register 在 server 上注册 FCB 服务
func Register(server *rpc.Server, f *fcb.FCB, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return server.RegisterName("FCB", &FCBService{fcb: f, log: log})
}

// Serve 在 addr 上监听并处理 rpc 请求，直到 ctx 结束
func Serve(ctx context.Context, addr string, f *fcb.FCB, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	server := rpc.NewServer()
	if err := Register(server, f, log); err != nil {
		return errors.Wrap(err, "register rpc service")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", addr)
	}
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	log.WithField("addr", listener.Addr().String()).Info("rpc server started")
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "accept")
		}
		go server.ServeConn(conn)
	}
}
