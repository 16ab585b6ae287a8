package service

import (
	"Swan/config"
	"Swan/pkg/log"
	"fmt"

	"go.uber.org/zap"
)

// ProvideRulesCatalog 默认规则叠加可选的规则文件，文件校验不通过则启动失败
func ProvideRulesCatalog(conf *config.Gamification) (*RulesCatalog, error) {
	catalog := NewRulesCatalog(NewRuleLimits(conf), DefaultRules())
	if conf.RulesFile == "" {
		return catalog, nil
	}

	update, err := LoadRulesFile(conf.RulesFile)
	if err != nil {
		return nil, err
	}
	res, err := catalog.UpdateRules(*update, nil)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", conf.RulesFile, err)
	}
	log.L.Info("rules file loaded", zap.String("file", conf.RulesFile), zap.Strings("updated", res.UpdatedRules))
	return catalog, nil
}
