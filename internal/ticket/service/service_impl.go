package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oakline/storefront/internal/clock"
	"github.com/oakline/storefront/internal/config"
	guildcfg "github.com/oakline/storefront/internal/guildconfig/domain"
	"github.com/oakline/storefront/internal/providers/chat"
	"github.com/oakline/storefront/internal/ticket/domain"
	"github.com/oakline/storefront/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Channel permission names understood by the chat provider.
const (
	permView   = "view_channel"
	permSend   = "send_messages"
	permManage = "manage_channels"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Chat     chat.Provider
	GuildCfg guildcfg.Service
	Config   config.Config
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	chat     chat.Provider
	guildCfg guildcfg.Service
	cfg      config.Config
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("ticket.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		chat:     p.Chat,
		guildCfg: p.GuildCfg,
		cfg:      p.Config,
	}
}

func (s *Service) OpenOrReuse(ctx context.Context, req domain.OpenRequest) (*domain.Ticket, bool, error) {
	if strings.TrimSpace(req.GuildID) == "" {
		return nil, false, domain.ErrInvalidGuild
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, false, domain.ErrInvalidOwner
	}
	if req.Kind != domain.KindPurchase && req.Kind != domain.KindSupport {
		return nil, false, domain.ErrInvalidKind
	}

	existing, err := s.repo.FindOpen(ctx, s.db, req.GuildID, req.UserID, req.Kind)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		alive, err := s.chat.ChannelExists(ctx, req.GuildID, existing.ChannelID)
		if err != nil {
			return nil, false, err
		}
		if alive {
			return existing, true, nil
		}
		// The channel was deleted out from under us; retire the record and
		// fall through to creation.
		if _, err := s.repo.MarkStale(ctx, s.db, existing.ID, s.clock.Now()); err != nil {
			return nil, false, err
		}
		s.log.Info("ticket channel gone, record marked stale",
			zap.String("guild_id", req.GuildID),
			zap.String("channel_id", existing.ChannelID))
	}

	channelID, err := s.createChannel(ctx, req)
	if err != nil {
		s.log.Error("ticket channel creation failed", zap.Error(err))
		return nil, false, domain.ErrChannelCreation
	}

	now := s.clock.Now()
	ticket := &domain.Ticket{
		ID:            s.genID.Generate().Int64(),
		GuildID:       req.GuildID,
		ChannelID:     channelID,
		OwnerID:       req.UserID,
		Kind:          req.Kind,
		Status:        domain.StatusOpen,
		ProductID:     req.ProductID,
		ReferenceCode: req.ReferenceCode,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, ticket); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost the single-open race. Tear down the channel we just made
			// and hand back the winner's ticket.
			if aerr := s.chat.ArchiveChannel(ctx, req.GuildID, channelID); aerr != nil {
				s.log.Warn("orphan ticket channel cleanup failed",
					zap.String("channel_id", channelID), zap.Error(aerr))
			}
			winner, ferr := s.repo.FindOpen(ctx, s.db, req.GuildID, req.UserID, req.Kind)
			if ferr == nil && winner != nil {
				return winner, true, nil
			}
		}
		return nil, false, err
	}
	return ticket, false, nil
}

func (s *Service) createChannel(ctx context.Context, req domain.OpenRequest) (string, error) {
	overwrites := []chat.PermissionOverwrite{
		// Everyone else is denied view access; the guild ID doubles as the
		// platform's everyone-role ID.
		{TargetID: req.GuildID, Type: chat.OverwriteRole, Deny: []string{permView}},
		{TargetID: req.UserID, Type: chat.OverwriteMember, Allow: []string{permView, permSend}},
	}
	if s.cfg.ChatBotUserID != "" {
		overwrites = append(overwrites, chat.PermissionOverwrite{
			TargetID: s.cfg.ChatBotUserID,
			Type:     chat.OverwriteMember,
			Allow:    []string{permView, permSend, permManage},
		})
	}

	gcfg, err := s.guildCfg.Get(ctx, req.GuildID)
	if err != nil {
		return "", err
	}
	if gcfg != nil && gcfg.SupportRoleID != nil && *gcfg.SupportRoleID != "" {
		overwrites = append(overwrites, chat.PermissionOverwrite{
			TargetID: *gcfg.SupportRoleID,
			Type:     chat.OverwriteRole,
			Allow:    []string{permView, permSend},
		})
	}

	return s.chat.CreateChannel(ctx, chat.CreateChannelRequest{
		GuildID:    req.GuildID,
		Name:       fmt.Sprintf("%s-%s", req.Kind, req.UserID),
		Topic:      fmt.Sprintf("%s ticket for <@%s>", req.Kind, req.UserID),
		Overwrites: overwrites,
	})
}

func (s *Service) Close(ctx context.Context, req domain.CloseRequest) (*domain.Ticket, error) {
	ticket, err := s.repo.FindByChannel(ctx, s.db, req.GuildID, req.ChannelID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, domain.ErrNotFound
	}
	if ticket.Status != domain.StatusOpen {
		return nil, domain.ErrNotOpen
	}

	if err := s.authorizeClose(ctx, ticket, req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ok, err := s.repo.Close(ctx, s.db, ticket.ID, req.ActorID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with a concurrent close.
		return nil, domain.ErrNotOpen
	}
	if err := ticket.Transition(domain.StatusClosed, now); err != nil {
		return nil, err
	}
	ticket.ClosedBy = &req.ActorID

	// Archival is best-effort; a platform hiccup must not undo the close.
	if err := s.chat.ArchiveChannel(ctx, req.GuildID, req.ChannelID); err != nil {
		s.log.Warn("ticket channel archival failed",
			zap.String("channel_id", req.ChannelID), zap.Error(err))
	}
	return ticket, nil
}

func (s *Service) authorizeClose(ctx context.Context, ticket *domain.Ticket, req domain.CloseRequest) error {
	if req.ActorIsAdmin || req.ActorID == ticket.OwnerID {
		return nil
	}
	gcfg, err := s.guildCfg.Get(ctx, req.GuildID)
	if err != nil {
		return err
	}
	if gcfg != nil && gcfg.SupportRoleID != nil {
		for _, roleID := range req.ActorRoleIDs {
			if roleID == *gcfg.SupportRoleID {
				return nil
			}
		}
	}
	return domain.ErrUnauthorized
}
