package impwhen

var LoggerFor = loggerFor
